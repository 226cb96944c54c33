package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"wisefido-careplan/internal/domain"
	"wisefido-careplan/internal/repository"
	"wisefido-careplan/internal/service"

	"go.uber.org/zap"
)

const apiPrefix = "/careplan/api/v1/"

// CarePlanHandler 护理计划 Handler（计划、项目、规则、任务）
type CarePlanHandler struct {
	carePlans service.CarePlanService
	tasks     service.TaskService
	logger    *zap.Logger
}

// NewCarePlanHandler 创建护理计划 Handler
func NewCarePlanHandler(carePlans service.CarePlanService, tasks service.TaskService, logger *zap.Logger) *CarePlanHandler {
	return &CarePlanHandler{
		carePlans: carePlans,
		tasks:     tasks,
		logger:    logger,
	}
}

type methods map[string]func()

func dispatch(w http.ResponseWriter, r *http.Request, m methods) {
	if fn, ok := m[r.Method]; ok {
		fn()
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// ServeHTTP 路由分发：/careplan/api/v1/{plans|items|schedules|tasks}/...
func (h *CarePlanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, apiPrefix), "/")
	seg := strings.Split(rest, "/")
	for _, s := range seg {
		if s == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	}

	switch {
	// Plans
	case len(seg) == 1 && seg[0] == "plans":
		dispatch(w, r, methods{
			http.MethodGet:  func() { h.ListPlans(w, r) },
			http.MethodPost: func() { h.CreatePlan(w, r) },
		})
	case len(seg) == 2 && seg[0] == "plans":
		dispatch(w, r, methods{
			http.MethodGet: func() { h.GetPlan(w, r, seg[1]) },
			http.MethodPut: func() { h.UpdatePlan(w, r, seg[1]) },
		})
	case len(seg) == 3 && seg[0] == "plans" && seg[2] == "status":
		dispatch(w, r, methods{http.MethodPut: func() { h.SetPlanStatus(w, r, seg[1]) }})
	case len(seg) == 3 && seg[0] == "plans" && seg[2] == "stop":
		dispatch(w, r, methods{http.MethodPost: func() { h.StopPlan(w, r, seg[1]) }})
	case len(seg) == 3 && seg[0] == "plans" && seg[2] == "items":
		dispatch(w, r, methods{
			http.MethodGet:  func() { h.ListItems(w, r, seg[1]) },
			http.MethodPost: func() { h.CreateItem(w, r, seg[1]) },
		})

	// Items
	case len(seg) == 2 && seg[0] == "items":
		dispatch(w, r, methods{
			http.MethodGet:    func() { h.GetItem(w, r, seg[1]) },
			http.MethodPut:    func() { h.UpdateItem(w, r, seg[1]) },
			http.MethodDelete: func() { h.DeleteItem(w, r, seg[1]) },
		})
	case len(seg) == 3 && seg[0] == "items" && seg[2] == "status":
		dispatch(w, r, methods{http.MethodPut: func() { h.SetItemStatus(w, r, seg[1]) }})
	case len(seg) == 3 && seg[0] == "items" && seg[2] == "schedules":
		dispatch(w, r, methods{
			http.MethodGet:  func() { h.ListSchedules(w, r, seg[1]) },
			http.MethodPost: func() { h.CreateSchedule(w, r, seg[1]) },
		})
	case len(seg) == 3 && seg[0] == "items" && seg[2] == "tasks":
		dispatch(w, r, methods{http.MethodGet: func() { h.ListTasks(w, r, seg[1]) }})
	case len(seg) == 4 && seg[0] == "items" && seg[2] == "tasks" && seg[3] == "export":
		dispatch(w, r, methods{http.MethodGet: func() { h.ExportTasks(w, r, seg[1]) }})

	// Schedules
	case len(seg) == 2 && seg[0] == "schedules":
		dispatch(w, r, methods{
			http.MethodPut:    func() { h.UpdateSchedule(w, r, seg[1]) },
			http.MethodDelete: func() { h.DeleteSchedule(w, r, seg[1]) },
		})
	case len(seg) == 3 && seg[0] == "schedules" && seg[2] == "generate":
		dispatch(w, r, methods{http.MethodPost: func() { h.GenerateTasks(w, r, seg[1]) }})

	// Tasks
	case len(seg) == 2 && seg[0] == "tasks":
		dispatch(w, r, methods{http.MethodGet: func() { h.GetTask(w, r, seg[1]) }})
	case len(seg) == 3 && seg[0] == "tasks" && seg[2] == "status":
		dispatch(w, r, methods{http.MethodPut: func() { h.UpdateTaskStatus(w, r, seg[1]) }})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// optionalDate 将可置空的日期字符串转为 Optional[time.Time]
func optionalDate(field string, o repository.Optional[string]) (repository.Optional[time.Time], error) {
	if !o.Set {
		return repository.Optional[time.Time]{}, nil
	}
	if o.Value == nil || *o.Value == "" {
		return repository.Null[time.Time](), nil
	}
	d, err := parseDate(field, *o.Value)
	if err != nil {
		return repository.Optional[time.Time]{}, err
	}
	return repository.Some(d), nil
}

// ============================================
// Plan 方法
// ============================================

type createPlanBody struct {
	ElderID     string  `json:"elder_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date"`
	CreatorID   string  `json:"creator_id"`
}

type updatePlanBody struct {
	Title       *string                     `json:"title"`
	Description repository.Optional[string] `json:"description"`
	StartDate   *string                     `json:"start_date"`
	EndDate     repository.Optional[string] `json:"end_date"`
}

type statusBody struct {
	Status string `json:"status"`
}

// CreatePlan 创建计划
func (h *CarePlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var body createPlanBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "CreatePlan", err)
		return
	}
	if strings.TrimSpace(body.ElderID) == "" || strings.TrimSpace(body.Title) == "" {
		writeError(w, h.logger, "CreatePlan", badRequest("elder_id and title are required"))
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		writeError(w, h.logger, "CreatePlan", err)
		return
	}
	end, err := parseOptionalDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, h.logger, "CreatePlan", err)
		return
	}

	plan, err := h.carePlans.CreatePlan(r.Context(), service.CreatePlanRequest{
		ElderID:     strings.TrimSpace(body.ElderID),
		Title:       strings.TrimSpace(body.Title),
		Description: body.Description,
		StartDate:   start,
		EndDate:     end,
		CreatorID:   body.CreatorID,
	})
	if err != nil {
		writeError(w, h.logger, "CreatePlan", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(planToDTO(plan)))
}

// ListPlans 查询长者的计划：?elder_id=&status=&order=asc|desc
func (h *CarePlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	elderID := q.Get("elder_id")
	if elderID == "" {
		writeError(w, h.logger, "ListPlans", badRequest("elder_id is required"))
		return
	}
	order := q.Get("order")
	if order != "" && order != "asc" && order != "desc" {
		writeError(w, h.logger, "ListPlans", badRequest("order must be asc or desc"))
		return
	}

	plans, err := h.carePlans.ListPlansByElder(r.Context(), service.ListPlansRequest{
		ElderID: elderID,
		Status:  domain.PlanStatus(q.Get("status")),
		Order:   order,
	})
	if err != nil {
		writeError(w, h.logger, "ListPlans", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(plansToDTO(plans)))
}

// GetPlan 获取计划
func (h *CarePlanHandler) GetPlan(w http.ResponseWriter, r *http.Request, planID string) {
	plan, err := h.carePlans.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, h.logger, "GetPlan", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(planToDTO(plan)))
}

// UpdatePlan 部分更新计划
func (h *CarePlanHandler) UpdatePlan(w http.ResponseWriter, r *http.Request, planID string) {
	var body updatePlanBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "UpdatePlan", err)
		return
	}

	patch := repository.PlanPatch{Title: body.Title, Description: body.Description}
	if body.StartDate != nil {
		start, err := parseDate("start_date", *body.StartDate)
		if err != nil {
			writeError(w, h.logger, "UpdatePlan", err)
			return
		}
		patch.StartDate = &start
	}
	end, err := optionalDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, h.logger, "UpdatePlan", err)
		return
	}
	patch.EndDate = end

	plan, err := h.carePlans.UpdatePlan(r.Context(), planID, patch)
	if err != nil {
		writeError(w, h.logger, "UpdatePlan", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(planToDTO(plan)))
}

// SetPlanStatus 设置计划状态
func (h *CarePlanHandler) SetPlanStatus(w http.ResponseWriter, r *http.Request, planID string) {
	var body statusBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "SetPlanStatus", err)
		return
	}
	plan, err := h.carePlans.SetPlanStatus(r.Context(), planID, domain.PlanStatus(body.Status))
	if err != nil {
		writeError(w, h.logger, "SetPlanStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(planToDTO(plan)))
}

// StopPlan 停止计划（级联项目与待执行任务）
func (h *CarePlanHandler) StopPlan(w http.ResponseWriter, r *http.Request, planID string) {
	result, err := h.carePlans.StopPlan(r.Context(), planID)
	if err != nil {
		writeError(w, h.logger, "StopPlan", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// ============================================
// Item 方法
// ============================================

type createItemBody struct {
	ItemType    string          `json:"item_type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	StartDate   string          `json:"start_date"`
	EndDate     *string         `json:"end_date"`
	Detail      json.RawMessage `json:"detail"`
}

type updateItemBody struct {
	Name        *string                     `json:"name"`
	Description repository.Optional[string] `json:"description"`
	StartDate   *string                     `json:"start_date"`
	EndDate     repository.Optional[string] `json:"end_date"`
	Detail      json.RawMessage             `json:"detail"`
}

// decodeDetail 按 item_type 解析详情并校验必填字段
func decodeDetail(itemType domain.ItemType, raw json.RawMessage) (domain.ItemDetail, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, badRequest("detail is required")
	}
	switch itemType {
	case domain.ItemTypeMedication:
		var d domain.MedicationDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, badRequest("invalid medication detail: %v", err)
		}
		if d.DrugName == "" || d.Dosage == "" || d.FrequencyType == "" {
			return nil, badRequest("drug_name, dosage and frequency_type are required")
		}
		return &d, nil
	case domain.ItemTypeRehab:
		var d domain.RehabDetail
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, badRequest("invalid rehab detail: %v", err)
		}
		if d.ExerciseName == "" {
			return nil, badRequest("exercise_name is required")
		}
		return &d, nil
	default:
		return nil, badRequest("unknown item_type %q", itemType)
	}
}

// CreateItem 在计划下创建项目
func (h *CarePlanHandler) CreateItem(w http.ResponseWriter, r *http.Request, planID string) {
	var body createItemBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "CreateItem", err)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, h.logger, "CreateItem", badRequest("name is required"))
		return
	}
	itemType := domain.ItemType(body.ItemType)
	detail, err := decodeDetail(itemType, body.Detail)
	if err != nil {
		writeError(w, h.logger, "CreateItem", err)
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		writeError(w, h.logger, "CreateItem", err)
		return
	}
	end, err := parseOptionalDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, h.logger, "CreateItem", err)
		return
	}

	item, err := h.carePlans.CreateItem(r.Context(), planID, service.CreateItemRequest{
		ItemType:    itemType,
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		StartDate:   start,
		EndDate:     end,
		Detail:      detail,
	})
	if err != nil {
		writeError(w, h.logger, "CreateItem", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(itemToDTO(item)))
}

// ListItems 查询计划下的项目：?status=
func (h *CarePlanHandler) ListItems(w http.ResponseWriter, r *http.Request, planID string) {
	items, err := h.carePlans.ListItemsByPlan(r.Context(), planID, domain.ItemStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, h.logger, "ListItems", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(itemsToDTO(items)))
}

// GetItem 获取项目（含详情）
func (h *CarePlanHandler) GetItem(w http.ResponseWriter, r *http.Request, itemID string) {
	item, err := h.carePlans.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, h.logger, "GetItem", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(itemToDTO(item)))
}

// UpdateItem 部分更新项目；detail 按项目现有类型解析
func (h *CarePlanHandler) UpdateItem(w http.ResponseWriter, r *http.Request, itemID string) {
	ctx := r.Context()

	var body updateItemBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "UpdateItem", err)
		return
	}

	patch := repository.ItemPatch{Name: body.Name, Description: body.Description}
	if body.StartDate != nil {
		start, err := parseDate("start_date", *body.StartDate)
		if err != nil {
			writeError(w, h.logger, "UpdateItem", err)
			return
		}
		patch.StartDate = &start
	}
	end, err := optionalDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, h.logger, "UpdateItem", err)
		return
	}
	patch.EndDate = end

	if len(body.Detail) > 0 {
		current, err := h.carePlans.GetItem(ctx, itemID)
		if err != nil {
			writeError(w, h.logger, "UpdateItem", err)
			return
		}
		detail, err := decodeDetail(current.ItemType, body.Detail)
		if err != nil {
			writeError(w, h.logger, "UpdateItem", err)
			return
		}
		patch.Detail = detail
	}

	item, err := h.carePlans.UpdateItem(ctx, itemID, patch)
	if err != nil {
		writeError(w, h.logger, "UpdateItem", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(itemToDTO(item)))
}

// SetItemStatus 设置项目状态（STOPPED 时待执行任务置为 SKIPPED）
func (h *CarePlanHandler) SetItemStatus(w http.ResponseWriter, r *http.Request, itemID string) {
	var body statusBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "SetItemStatus", err)
		return
	}
	result, err := h.carePlans.SetItemStatus(r.Context(), itemID, domain.ItemStatus(body.Status))
	if err != nil {
		writeError(w, h.logger, "SetItemStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// DeleteItem 删除项目
func (h *CarePlanHandler) DeleteItem(w http.ResponseWriter, r *http.Request, itemID string) {
	if err := h.carePlans.DeleteItem(r.Context(), itemID); err != nil {
		writeError(w, h.logger, "DeleteItem", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"item_id": itemID}))
}

// ============================================
// Schedule 方法
// ============================================

type createScheduleBody struct {
	ScheduleType string   `json:"schedule_type"`
	StartDate    string   `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	TimesOfDay   []string `json:"times_of_day"`
	Weekdays     []int    `json:"weekdays"`
}

type updateScheduleBody struct {
	ScheduleType *string                     `json:"schedule_type"`
	StartDate    *string                     `json:"start_date"`
	EndDate      repository.Optional[string] `json:"end_date"`
	TimesOfDay   *[]string                   `json:"times_of_day"`
	Weekdays     *[]int                      `json:"weekdays"`
}

type generateBody struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Override bool   `json:"override"`
}

// CreateSchedule 创建规则并生成初始任务
func (h *CarePlanHandler) CreateSchedule(w http.ResponseWriter, r *http.Request, itemID string) {
	var body createScheduleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "CreateSchedule", err)
		return
	}
	start, err := parseDate("start_date", body.StartDate)
	if err != nil {
		writeError(w, h.logger, "CreateSchedule", err)
		return
	}
	end, err := parseOptionalDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, h.logger, "CreateSchedule", err)
		return
	}

	result, err := h.carePlans.CreateSchedule(r.Context(), itemID, service.CreateScheduleRequest{
		ScheduleType: domain.ScheduleType(body.ScheduleType),
		StartDate:    start,
		EndDate:      end,
		TimesOfDay:   body.TimesOfDay,
		Weekdays:     body.Weekdays,
	})
	if err != nil {
		writeError(w, h.logger, "CreateSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"schedule":      scheduleToDTO(result.Schedule),
		"tasks_created": result.TasksCreated,
	}))
}

// ListSchedules 查询项目的规则
func (h *CarePlanHandler) ListSchedules(w http.ResponseWriter, r *http.Request, itemID string) {
	list, err := h.carePlans.ListSchedulesByItem(r.Context(), itemID)
	if err != nil {
		writeError(w, h.logger, "ListSchedules", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(schedulesToDTO(list)))
}

// UpdateSchedule 部分更新规则（不重新生成任务）
func (h *CarePlanHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request, scheduleID string) {
	var body updateScheduleBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "UpdateSchedule", err)
		return
	}

	patch := repository.SchedulePatch{TimesOfDay: body.TimesOfDay, Weekdays: body.Weekdays}
	if body.ScheduleType != nil {
		typ := domain.ScheduleType(*body.ScheduleType)
		patch.ScheduleType = &typ
	}
	if body.StartDate != nil {
		start, err := parseDate("start_date", *body.StartDate)
		if err != nil {
			writeError(w, h.logger, "UpdateSchedule", err)
			return
		}
		patch.StartDate = &start
	}
	end, err := optionalDate("end_date", body.EndDate)
	if err != nil {
		writeError(w, h.logger, "UpdateSchedule", err)
		return
	}
	patch.EndDate = end

	updated, err := h.carePlans.UpdateSchedule(r.Context(), scheduleID, patch)
	if err != nil {
		writeError(w, h.logger, "UpdateSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(scheduleToDTO(updated)))
}

// DeleteSchedule 删除规则（已生成任务保留）
func (h *CarePlanHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if err := h.carePlans.DeleteSchedule(r.Context(), scheduleID); err != nil {
		writeError(w, h.logger, "DeleteSchedule", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"schedule_id": scheduleID}))
}

// GenerateTasks 按窗口生成任务
func (h *CarePlanHandler) GenerateTasks(w http.ResponseWriter, r *http.Request, scheduleID string) {
	var body generateBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "GenerateTasks", err)
		return
	}
	from, err := parseDate("from", body.From)
	if err != nil {
		writeError(w, h.logger, "GenerateTasks", err)
		return
	}
	to, err := parseDate("to", body.To)
	if err != nil {
		writeError(w, h.logger, "GenerateTasks", err)
		return
	}

	created, err := h.carePlans.GenerateTasks(r.Context(), service.GenerateTasksRequest{
		ScheduleID: scheduleID,
		From:       from,
		To:         to,
		Override:   body.Override,
	})
	if err != nil {
		writeError(w, h.logger, "GenerateTasks", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"created": created}))
}

// ============================================
// Task 方法
// ============================================

type taskStatusBody struct {
	Status   string  `json:"status"`
	Remark   *string `json:"remark"`
	ProofRef *string `json:"proof_ref"`
}

// taskFilters 解析 ?from=&to=&status=
func taskFilters(r *http.Request) (repository.TaskFilters, error) {
	from, err := queryDate(r, "from")
	if err != nil {
		return repository.TaskFilters{}, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return repository.TaskFilters{}, err
	}
	return repository.TaskFilters{
		From:   from,
		To:     to,
		Status: domain.TaskStatus(r.URL.Query().Get("status")),
	}, nil
}

// ListTasks 查询项目的任务
func (h *CarePlanHandler) ListTasks(w http.ResponseWriter, r *http.Request, itemID string) {
	filters, err := taskFilters(r)
	if err != nil {
		writeError(w, h.logger, "ListTasks", err)
		return
	}
	tasks, err := h.carePlans.ListTasksByItem(r.Context(), itemID, filters)
	if err != nil {
		writeError(w, h.logger, "ListTasks", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(tasksToDTO(tasks)))
}

// ExportTasks 导出项目任务为 Excel
func (h *CarePlanHandler) ExportTasks(w http.ResponseWriter, r *http.Request, itemID string) {
	ctx := r.Context()

	filters, err := taskFilters(r)
	if err != nil {
		writeError(w, h.logger, "ExportTasks", err)
		return
	}
	item, err := h.carePlans.GetItem(ctx, itemID)
	if err != nil {
		writeError(w, h.logger, "ExportTasks", err)
		return
	}
	tasks, err := h.carePlans.ListTasksByItem(ctx, itemID, filters)
	if err != nil {
		writeError(w, h.logger, "ExportTasks", err)
		return
	}

	data, err := GenerateTaskSheet(item, tasks)
	if err != nil {
		writeError(w, h.logger, "ExportTasks", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachmentDisposition("care_tasks_"+item.ItemID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetTask 获取任务
func (h *CarePlanHandler) GetTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := h.carePlans.GetTask(r.Context(), taskID)
	if err != nil {
		writeError(w, h.logger, "GetTask", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(taskToDTO(task)))
}

// UpdateTaskStatus 打卡：更新任务状态
func (h *CarePlanHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	var body taskStatusBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, h.logger, "UpdateTaskStatus", err)
		return
	}
	task, err := h.tasks.UpdateStatus(r.Context(), service.UpdateTaskStatusRequest{
		TaskID:   taskID,
		Status:   domain.TaskStatus(body.Status),
		Remark:   body.Remark,
		ProofRef: body.ProofRef,
	})
	if err != nil {
		writeError(w, h.logger, "UpdateTaskStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(taskToDTO(task)))
}
