// Package schedule 将重复规则展开为具体的 (日期, 时间) 种子，纯函数，无 I/O。
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"wisefido-careplan/internal/domain"
)

// ErrInvalidRange 目标窗口结束日期早于开始日期
var ErrInvalidRange = errors.New("invalid range: end date before start date")

// MaxSpanDays 单次展开（与规则边界求交之后）最多覆盖的天数
const MaxSpanDays = 366

// ErrWindowTooLarge 展开跨度超过 MaxSpanDays；属于 ErrInvalidRange
var ErrWindowTooLarge = fmt.Errorf("generation window exceeds %d days: %w", MaxSpanDays, ErrInvalidRange)

// Rule 重复规则（与 domain.Schedule 对应的纯数据）
type Rule struct {
	Type       domain.ScheduleType
	StartDate  time.Time
	EndDate    *time.Time // nil 表示不限结束
	TimesOfDay []string   // "HH:mm"
	Weekdays   []int      // 1=周一 ... 7=周日，仅 WEEKLY
}

// Seed 展开结果：某天的某个时间点，尚未持久化
// Time 为空表示该规则没有配置具体时间（整天任务）
type Seed struct {
	Date time.Time
	Time string
}

// RuleFromSchedule 从持久化的 Schedule 构造规则
func RuleFromSchedule(s *domain.Schedule) Rule {
	return Rule{
		Type:       s.ScheduleType,
		StartDate:  s.StartDate,
		EndDate:    s.EndDate,
		TimesOfDay: s.TimesOfDay,
		Weekdays:   s.Weekdays,
	}
}

// InitialWindow 创建规则时立即生成任务的窗口：[start, end ?? start]，
// 最多 MaxSpanDays 天，之后的任务通过按窗口生成补齐。
func InitialWindow(r Rule) (time.Time, time.Time) {
	start := domain.Date(r.StartDate)
	if r.EndDate == nil {
		return start, start
	}
	end := domain.Date(*r.EndDate)
	if limit := start.AddDate(0, 0, MaxSpanDays-1); end.After(limit) {
		end = limit
	}
	return start, end
}

// Expand 在 [rangeStart, rangeEnd]（含两端）与规则自身 [start, end] 的交集内逐日展开。
// 日期升序；同一天内按时间升序，每个时间点一个种子。
// 相同输入总是得到相同输出。
func Expand(r Rule, rangeStart, rangeEnd time.Time) ([]Seed, error) {
	from := domain.Date(rangeStart)
	to := domain.Date(rangeEnd)
	if to.Before(from) {
		return nil, ErrInvalidRange
	}

	lo := from
	if start := domain.Date(r.StartDate); start.After(lo) {
		lo = start
	}
	hi := to
	if r.EndDate != nil {
		if end := domain.Date(*r.EndDate); end.Before(hi) {
			hi = end
		}
	}
	if r.Type == domain.ScheduleTypeOnce {
		if start := domain.Date(r.StartDate); start.Before(hi) {
			hi = start
		}
	}
	if hi.Before(lo) {
		return []Seed{}, nil
	}
	if spanDays(lo, hi) > MaxSpanDays {
		return nil, ErrWindowTooLarge
	}

	times := NormalizeTimes(r.TimesOfDay)
	match := dayMatcher(r)

	seeds := make([]Seed, 0)
	for day := lo; !day.After(hi); day = day.AddDate(0, 0, 1) {
		if !match(day) {
			continue
		}
		if len(times) == 0 {
			seeds = append(seeds, Seed{Date: day})
			continue
		}
		for _, t := range times {
			seeds = append(seeds, Seed{Date: day, Time: t})
		}
	}
	return seeds, nil
}

// spanDays [lo, hi] 含两端的天数（均为 UTC 零点）
func spanDays(lo, hi time.Time) int {
	return int(hi.Sub(lo).Hours()/24) + 1
}

func dayMatcher(r Rule) func(time.Time) bool {
	switch r.Type {
	case domain.ScheduleTypeOnce:
		start := domain.Date(r.StartDate)
		return func(day time.Time) bool { return day.Equal(start) }
	case domain.ScheduleTypeDaily:
		return func(time.Time) bool { return true }
	case domain.ScheduleTypeWeekly:
		set := make(map[int]struct{}, len(r.Weekdays))
		for _, wd := range r.Weekdays {
			set[wd] = struct{}{}
		}
		return func(day time.Time) bool {
			_, ok := set[domain.ISOWeekday(day)]
			return ok
		}
	default:
		return func(time.Time) bool { return false }
	}
}

// NormalizeTimes 排序并去重 "HH:mm"（零填充格式下字典序即时间序）
func NormalizeTimes(times []string) []string {
	if len(times) == 0 {
		return nil
	}
	out := make([]string, 0, len(times))
	seen := make(map[string]struct{}, len(times))
	for _, t := range times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
