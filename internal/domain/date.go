package domain

import "time"

// DateLayout 日期格式（接口与数据库均使用）
const DateLayout = "2006-01-02"

// TimeOfDayLayout 每日时间格式
const TimeOfDayLayout = "15:04"

// Date 截取日期部分（UTC 零点），用于日期比较和迭代
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 "YYYY-MM-DD"
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate 格式化为 "YYYY-MM-DD"
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ISOWeekday 周一=1 ... 周日=7
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
