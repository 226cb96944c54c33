package httpapi

import (
	"time"

	"wisefido-careplan/internal/domain"
)

// 前端格式：日期 "YYYY-MM-DD"，时间戳 RFC3339

type planDTO struct {
	PlanID      string  `json:"plan_id"`
	ElderID     string  `json:"elder_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	CreatorID   string  `json:"creator_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type itemDTO struct {
	ItemID      string  `json:"item_id"`
	PlanID      string  `json:"plan_id"`
	ItemType    string  `json:"item_type"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Detail      any     `json:"detail"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type scheduleDTO struct {
	ScheduleID   string   `json:"schedule_id"`
	ItemID       string   `json:"item_id"`
	ScheduleType string   `json:"schedule_type"`
	StartDate    string   `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	TimesOfDay   []string `json:"times_of_day"`
	Weekdays     []int    `json:"weekdays"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type taskDTO struct {
	TaskID       string  `json:"task_id"`
	ItemID       string  `json:"item_id"`
	ScheduleID   *string `json:"schedule_id"`
	TaskDate     string  `json:"task_date"`
	TaskTime     *string `json:"task_time"`
	Status       string  `json:"status"`
	CompleteTime *string `json:"complete_time"`
	Remark       *string `json:"remark"`
	ProofRef     *string `json:"proof_ref"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatDate(*t)
	return &s
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatTimestampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func planToDTO(p *domain.Plan) planDTO {
	return planDTO{
		PlanID:      p.PlanID,
		ElderID:     p.ElderID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		StartDate:   domain.FormatDate(p.StartDate),
		EndDate:     formatDatePtr(p.EndDate),
		CreatorID:   p.CreatorID,
		CreatedAt:   formatTimestamp(p.CreatedAt),
		UpdatedAt:   formatTimestamp(p.UpdatedAt),
	}
}

func itemToDTO(it *domain.PlanItem) itemDTO {
	return itemDTO{
		ItemID:      it.ItemID,
		PlanID:      it.PlanID,
		ItemType:    string(it.ItemType),
		Name:        it.Name,
		Description: it.Description,
		Status:      string(it.Status),
		StartDate:   domain.FormatDate(it.StartDate),
		EndDate:     formatDatePtr(it.EndDate),
		Detail:      it.Detail,
		CreatedAt:   formatTimestamp(it.CreatedAt),
		UpdatedAt:   formatTimestamp(it.UpdatedAt),
	}
}

func scheduleToDTO(s *domain.Schedule) scheduleDTO {
	times := s.TimesOfDay
	if times == nil {
		times = []string{}
	}
	weekdays := s.Weekdays
	if weekdays == nil {
		weekdays = []int{}
	}
	return scheduleDTO{
		ScheduleID:   s.ScheduleID,
		ItemID:       s.ItemID,
		ScheduleType: string(s.ScheduleType),
		StartDate:    domain.FormatDate(s.StartDate),
		EndDate:      formatDatePtr(s.EndDate),
		TimesOfDay:   times,
		Weekdays:     weekdays,
		CreatedAt:    formatTimestamp(s.CreatedAt),
		UpdatedAt:    formatTimestamp(s.UpdatedAt),
	}
}

func taskToDTO(t *domain.TaskInstance) taskDTO {
	return taskDTO{
		TaskID:       t.TaskID,
		ItemID:       t.ItemID,
		ScheduleID:   t.ScheduleID,
		TaskDate:     domain.FormatDate(t.TaskDate),
		TaskTime:     t.TaskTime,
		Status:       string(t.Status),
		CompleteTime: formatTimestampPtr(t.CompleteTime),
		Remark:       t.Remark,
		ProofRef:     t.ProofRef,
		CreatedAt:    formatTimestamp(t.CreatedAt),
		UpdatedAt:    formatTimestamp(t.UpdatedAt),
	}
}

func plansToDTO(in []*domain.Plan) []planDTO {
	out := make([]planDTO, 0, len(in))
	for _, p := range in {
		out = append(out, planToDTO(p))
	}
	return out
}

func itemsToDTO(in []*domain.PlanItem) []itemDTO {
	out := make([]itemDTO, 0, len(in))
	for _, it := range in {
		out = append(out, itemToDTO(it))
	}
	return out
}

func schedulesToDTO(in []*domain.Schedule) []scheduleDTO {
	out := make([]scheduleDTO, 0, len(in))
	for _, s := range in {
		out = append(out, scheduleToDTO(s))
	}
	return out
}

func tasksToDTO(in []*domain.TaskInstance) []taskDTO {
	out := make([]taskDTO, 0, len(in))
	for _, t := range in {
		out = append(out, taskToDTO(t))
	}
	return out
}
