package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-careplan/internal/domain"

	"github.com/google/uuid"
)

// MemoryCarePlanStore: DB 未就绪时的联测存储，也用于 service 单元测试
// - 同时实现 Plans/PlanItems/Schedules/TaskInstances 四个 Repository
// - 一把锁保证"项目+详情"、"规则+任务"等写入的原子性
// - 行为对齐 Postgres 实现：外键级联、规则删除后任务 schedule_id 置空、生成槽位唯一
type MemoryCarePlanStore struct {
	mu sync.RWMutex

	plans     map[string]*domain.Plan
	items     map[string]*domain.PlanItem
	schedules map[string]*domain.Schedule
	tasks     map[string]*domain.TaskInstance

	// 生成槽位索引：slotKey -> taskID
	slots map[string]string
}

func NewMemoryCarePlanStore() *MemoryCarePlanStore {
	return &MemoryCarePlanStore{
		plans:     map[string]*domain.Plan{},
		items:     map[string]*domain.PlanItem{},
		schedules: map[string]*domain.Schedule{},
		tasks:     map[string]*domain.TaskInstance{},
		slots:     map[string]string{},
	}
}

var (
	_ PlansRepository         = (*MemoryCarePlanStore)(nil)
	_ PlanItemsRepository     = (*MemoryCarePlanStore)(nil)
	_ SchedulesRepository     = (*MemoryCarePlanStore)(nil)
	_ TaskInstancesRepository = (*MemoryCarePlanStore)(nil)
)

func slotKey(t *domain.TaskInstance) (string, bool) {
	if t.ScheduleID == nil {
		return "", false
	}
	tm := ""
	if t.TaskTime != nil {
		tm = *t.TaskTime
	}
	return t.ItemID + "|" + *t.ScheduleID + "|" + domain.FormatDate(t.TaskDate) + "|" + tm, true
}

func applyOptional[T any](dst **T, o Optional[T]) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		*dst = nil
		return
	}
	v := *o.Value
	*dst = &v
}

func copyPlan(p *domain.Plan) *domain.Plan {
	c := *p
	if p.EndDate != nil {
		e := *p.EndDate
		c.EndDate = &e
	}
	return &c
}

func copyItem(it *domain.PlanItem) *domain.PlanItem {
	c := *it
	if it.EndDate != nil {
		e := *it.EndDate
		c.EndDate = &e
	}
	switch d := it.Detail.(type) {
	case *domain.MedicationDetail:
		dc := *d
		c.Detail = &dc
	case *domain.RehabDetail:
		dc := *d
		c.Detail = &dc
	}
	return &c
}

func copySchedule(s *domain.Schedule) *domain.Schedule {
	c := *s
	if s.EndDate != nil {
		e := *s.EndDate
		c.EndDate = &e
	}
	c.TimesOfDay = append([]string(nil), s.TimesOfDay...)
	c.Weekdays = append([]int(nil), s.Weekdays...)
	return &c
}

func copyTask(t *domain.TaskInstance) *domain.TaskInstance {
	c := *t
	if t.ScheduleID != nil {
		v := *t.ScheduleID
		c.ScheduleID = &v
	}
	if t.TaskTime != nil {
		v := *t.TaskTime
		c.TaskTime = &v
	}
	if t.CompleteTime != nil {
		v := *t.CompleteTime
		c.CompleteTime = &v
	}
	if t.Remark != nil {
		v := *t.Remark
		c.Remark = &v
	}
	if t.ProofRef != nil {
		v := *t.ProofRef
		c.ProofRef = &v
	}
	return &c
}

// ---- plans ----

func (s *MemoryCarePlanStore) CreatePlan(_ context.Context, plan *domain.Plan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("plan is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c := copyPlan(plan)
	c.PlanID = uuid.NewString()
	if c.Status == "" {
		c.Status = domain.PlanStatusActive
	}
	c.CreatedAt, c.UpdatedAt = now, now
	s.plans[c.PlanID] = c

	plan.PlanID, plan.Status, plan.CreatedAt, plan.UpdatedAt = c.PlanID, c.Status, now, now
	return c.PlanID, nil
}

func (s *MemoryCarePlanStore) GetPlan(_ context.Context, planID string) (*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	return copyPlan(p), nil
}

func (s *MemoryCarePlanStore) ListPlansByElder(_ context.Context, elderID string, filters PlanFilters) ([]*domain.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Plan{}
	for _, p := range s.plans {
		if p.ElderID != elderID {
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		out = append(out, copyPlan(p))
	}
	asc := filters.Order == "asc"
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate) {
			if asc {
				return a.StartDate.Before(b.StartDate)
			}
			return a.StartDate.After(b.StartDate)
		}
		if asc {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (s *MemoryCarePlanStore) UpdatePlan(_ context.Context, planID string, patch PlanPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description.Set {
		p.Description = ""
		if patch.Description.Value != nil {
			p.Description = *patch.Description.Value
		}
	}
	if patch.StartDate != nil {
		p.StartDate = *patch.StartDate
	}
	applyOptional(&p.EndDate, patch.EndDate)
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCarePlanStore) SetPlanStatus(_ context.Context, planID string, status domain.PlanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	return nil
}

// ---- items ----

func (s *MemoryCarePlanStore) CreateItem(_ context.Context, item *domain.PlanItem) (string, error) {
	if item == nil {
		return "", fmt.Errorf("item is required")
	}
	if !item.DetailMatches() {
		return "", fmt.Errorf("item detail does not match item_type %s", item.ItemType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[item.PlanID]; !ok {
		return "", fmt.Errorf("plan %s: %w", item.PlanID, ErrNotFound)
	}

	now := time.Now()
	c := copyItem(item)
	c.ItemID = uuid.NewString()
	if c.Status == "" {
		c.Status = domain.ItemStatusActive
	}
	c.CreatedAt, c.UpdatedAt = now, now
	s.items[c.ItemID] = c

	item.ItemID, item.Status, item.CreatedAt, item.UpdatedAt = c.ItemID, c.Status, now, now
	return c.ItemID, nil
}

func (s *MemoryCarePlanStore) GetItem(_ context.Context, itemID string) (*domain.PlanItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	return copyItem(it), nil
}

func (s *MemoryCarePlanStore) ListItemsByPlan(_ context.Context, planID string, status domain.ItemStatus) ([]*domain.PlanItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.PlanItem{}
	for _, it := range s.items {
		if it.PlanID != planID || (status != "" && it.Status != status) {
			continue
		}
		out = append(out, copyItem(it))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryCarePlanStore) UpdateItem(_ context.Context, itemID string, patch ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if patch.Detail != nil && patch.Detail.Type() != it.ItemType {
		return fmt.Errorf("item detail does not match item_type %s", it.ItemType)
	}
	if patch.Name != nil {
		it.Name = *patch.Name
	}
	if patch.Description.Set {
		it.Description = ""
		if patch.Description.Value != nil {
			it.Description = *patch.Description.Value
		}
	}
	if patch.StartDate != nil {
		it.StartDate = *patch.StartDate
	}
	applyOptional(&it.EndDate, patch.EndDate)
	if patch.Detail != nil {
		it.Detail = copyItem(&domain.PlanItem{Detail: patch.Detail}).Detail
	}
	it.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCarePlanStore) SetItemStatus(_ context.Context, itemID string, status domain.ItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	it.Status = status
	it.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCarePlanStore) SetStatusByPlan(_ context.Context, planID string, status domain.ItemStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for _, it := range s.items {
		if it.PlanID == planID {
			it.Status = status
			it.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *MemoryCarePlanStore) DeleteItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	for id, sc := range s.schedules {
		if sc.ItemID == itemID {
			delete(s.schedules, id)
		}
	}
	for id, t := range s.tasks {
		if t.ItemID == itemID {
			s.removeTaskLocked(id)
		}
	}
	delete(s.items, itemID)
	return nil
}

// ---- schedules ----

func (s *MemoryCarePlanStore) CreateScheduleWithTasks(_ context.Context, schedule *domain.Schedule, tasks []*domain.TaskInstance) (string, int, error) {
	if schedule == nil {
		return "", 0, fmt.Errorf("schedule is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[schedule.ItemID]; !ok {
		return "", 0, fmt.Errorf("item %s: %w", schedule.ItemID, ErrNotFound)
	}

	now := time.Now()
	c := copySchedule(schedule)
	c.ScheduleID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = now, now
	s.schedules[c.ScheduleID] = c

	for _, t := range tasks {
		sid := c.ScheduleID
		t.ScheduleID = &sid
	}
	created, err := s.insertTasksLocked(tasks)
	if err != nil {
		delete(s.schedules, c.ScheduleID)
		return "", 0, err
	}

	schedule.ScheduleID, schedule.CreatedAt, schedule.UpdatedAt = c.ScheduleID, now, now
	return c.ScheduleID, created, nil
}

func (s *MemoryCarePlanStore) GetSchedule(_ context.Context, scheduleID string) (*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, ErrNotFound)
	}
	return copySchedule(sc), nil
}

func (s *MemoryCarePlanStore) ListSchedulesByItem(_ context.Context, itemID string) ([]*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.Schedule{}
	for _, sc := range s.schedules {
		if sc.ItemID == itemID {
			out = append(out, copySchedule(sc))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryCarePlanStore) UpdateSchedule(_ context.Context, scheduleID string, patch SchedulePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("schedule %s: %w", scheduleID, ErrNotFound)
	}
	if patch.ScheduleType != nil {
		sc.ScheduleType = *patch.ScheduleType
	}
	if patch.StartDate != nil {
		sc.StartDate = *patch.StartDate
	}
	applyOptional(&sc.EndDate, patch.EndDate)
	if patch.TimesOfDay != nil {
		sc.TimesOfDay = append([]string(nil), (*patch.TimesOfDay)...)
	}
	if patch.Weekdays != nil {
		sc.Weekdays = append([]int(nil), (*patch.Weekdays)...)
	}
	sc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCarePlanStore) DeleteSchedule(_ context.Context, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[scheduleID]; !ok {
		return fmt.Errorf("schedule %s: %w", scheduleID, ErrNotFound)
	}
	for _, t := range s.tasks {
		if t.ScheduleID != nil && *t.ScheduleID == scheduleID {
			if key, ok := slotKey(t); ok {
				delete(s.slots, key)
			}
			t.ScheduleID = nil
		}
	}
	delete(s.schedules, scheduleID)
	return nil
}

// ---- tasks ----

func (s *MemoryCarePlanStore) insertTasksLocked(tasks []*domain.TaskInstance) (int, error) {
	now := time.Now()
	created := 0
	for _, t := range tasks {
		if _, ok := s.items[t.ItemID]; !ok {
			return created, fmt.Errorf("item %s: %w", t.ItemID, ErrNotFound)
		}
		key, slotted := slotKey(t)
		if slotted {
			if _, exists := s.slots[key]; exists {
				continue
			}
		}
		c := copyTask(t)
		c.TaskID = uuid.NewString()
		if c.Status == "" {
			c.Status = domain.TaskStatusPending
		}
		c.CreatedAt, c.UpdatedAt = now, now
		s.tasks[c.TaskID] = c
		if slotted {
			s.slots[key] = c.TaskID
		}
		t.TaskID = c.TaskID
		created++
	}
	return created, nil
}

func (s *MemoryCarePlanStore) removeTaskLocked(taskID string) {
	t, ok := s.tasks[taskID]
	if !ok {
		return
	}
	if key, ok := slotKey(t); ok && s.slots[key] == taskID {
		delete(s.slots, key)
	}
	delete(s.tasks, taskID)
}

func (s *MemoryCarePlanStore) deleteByScheduleLocked(scheduleID string, from, to time.Time) int64 {
	from, to = domain.Date(from), domain.Date(to)
	var n int64
	for id, t := range s.tasks {
		if t.ScheduleID == nil || *t.ScheduleID != scheduleID {
			continue
		}
		d := domain.Date(t.TaskDate)
		if d.Before(from) || d.After(to) {
			continue
		}
		s.removeTaskLocked(id)
		n++
	}
	return n
}

func (s *MemoryCarePlanStore) GetTask(_ context.Context, taskID string) (*domain.TaskInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return copyTask(t), nil
}

func (s *MemoryCarePlanStore) ListTasksByItem(_ context.Context, itemID string, filters TaskFilters) ([]*domain.TaskInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*domain.TaskInstance{}
	for _, t := range s.tasks {
		if t.ItemID != itemID {
			continue
		}
		d := domain.Date(t.TaskDate)
		if filters.From != nil && d.Before(domain.Date(*filters.From)) {
			continue
		}
		if filters.To != nil && d.After(domain.Date(*filters.To)) {
			continue
		}
		if filters.Status != "" && t.Status != filters.Status {
			continue
		}
		out = append(out, copyTask(t))
	}
	sortTasks(out)
	return out, nil
}

// sortTasks 按日期、时间排序（无时间的排在当天最前）
func sortTasks(tasks []*domain.TaskInstance) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if !a.TaskDate.Equal(b.TaskDate) {
			return a.TaskDate.Before(b.TaskDate)
		}
		at, bt := "", ""
		if a.TaskTime != nil {
			at = *a.TaskTime
		}
		if b.TaskTime != nil {
			bt = *b.TaskTime
		}
		if at != bt {
			return at < bt
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (s *MemoryCarePlanStore) InsertTasks(_ context.Context, tasks []*domain.TaskInstance) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTasksLocked(tasks)
}

func (s *MemoryCarePlanStore) DeleteBySchedule(_ context.Context, scheduleID string, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteByScheduleLocked(scheduleID, from, to), nil
}

func (s *MemoryCarePlanStore) GenerateForSchedule(_ context.Context, scheduleID string, from, to time.Time, tasks []*domain.TaskInstance, override bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if override {
		s.deleteByScheduleLocked(scheduleID, from, to)
	}
	return s.insertTasksLocked(tasks)
}

func (s *MemoryCarePlanStore) UpdateTask(_ context.Context, taskID string, patch TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	applyOptional(&t.CompleteTime, patch.CompleteTime)
	applyOptional(&t.Remark, patch.Remark)
	applyOptional(&t.ProofRef, patch.ProofRef)
	t.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCarePlanStore) BulkUpdateStatus(_ context.Context, taskIDs []string, from, to domain.TaskStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for _, id := range taskIDs {
		t, ok := s.tasks[id]
		if !ok || t.Status != from {
			continue
		}
		t.Status = to
		if to == domain.TaskStatusCompleted {
			if t.CompleteTime == nil {
				t.CompleteTime = &now
			}
		} else {
			t.CompleteTime = nil
		}
		t.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *MemoryCarePlanStore) ListIDsByPlan(_ context.Context, planID string, status domain.TaskStatus) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []*domain.TaskInstance{}
	for _, t := range s.tasks {
		it, ok := s.items[t.ItemID]
		if !ok || it.PlanID != planID || t.Status != status {
			continue
		}
		matched = append(matched, t)
	}
	return taskIDs(matched), nil
}

func (s *MemoryCarePlanStore) ListIDsByItem(_ context.Context, itemID string, status domain.TaskStatus) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []*domain.TaskInstance{}
	for _, t := range s.tasks {
		if t.ItemID == itemID && t.Status == status {
			matched = append(matched, t)
		}
	}
	return taskIDs(matched), nil
}

func taskIDs(tasks []*domain.TaskInstance) []string {
	sortTasks(tasks)
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.TaskID)
	}
	return ids
}
