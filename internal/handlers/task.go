package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/models"
)

const (
	flashTruncated = "You have exceeded the character limit (500)"
	flashAdded     = "Successfully Added New Task!"
)

/*
handles routes:
- GET / - active (not completed) tasks of the current user with status counts
- POST / - change the status of one task
*/
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tasks, err := h.TaskRepo.ListActive(ctx, user.Username)
	if err != nil {
		h.serverError(w, r, "listing active tasks", err)
		return
	}
	counts, err := h.TaskRepo.CountByStatus(ctx, user.Username)
	if err != nil {
		h.serverError(w, r, "counting tasks", err)
		return
	}

	h.render(w, r, http.StatusOK, "index", pageData{
		Title:    "Tasks",
		Tasks:    tasks,
		Counts:   counts,
		Statuses: models.TaskStatuses,
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	status := models.TaskStatus(r.PostFormValue("change_status"))
	if status == "" {
		h.apology(w, r, "Please Select the Status you want to Change!", http.StatusBadRequest)
		return
	}
	if !status.Valid() {
		h.apology(w, r, "Invalid Status", http.StatusBadRequest)
		return
	}
	taskID, ok := parseTaskID(r)
	if !ok {
		h.apology(w, r, "Invalid Task", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	err := h.TaskRepo.UpdateStatus(ctx, taskID, user.Username, status)
	if errors.Is(err, db.ErrTaskNotFound) {
		h.log(r).Warn("status update for missing or foreign task",
			zap.Int64("task_id", taskID), zap.String("username", user.Username))
	} else if err != nil {
		h.serverError(w, r, "updating task status", err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) AddTaskPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "add_new_task", pageData{
		Title:    "Add New Task",
		Statuses: models.TaskStatuses,
	})
}

func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	task := &models.Task{
		Username:    user.Username,
		StartDate:   r.PostFormValue("date"),
		DueDate:     r.PostFormValue("due_date"),
		Title:       r.PostFormValue("task"),
		Description: r.PostFormValue("description"),
		Status:      models.TaskStatus(r.PostFormValue("status")),
	}
	if task.StartDate == "" || task.DueDate == "" || task.Title == "" ||
		task.Description == "" || task.Status == "" {
		h.apology(w, r, "Must Provide All Fields", http.StatusBadRequest)
		return
	}

	ordered, err := models.ValidDateRange(task.StartDate, task.DueDate)
	if err != nil {
		h.apology(w, r, "Dates Must be in YYYY-MM-DD Format", http.StatusBadRequest)
		return
	}
	if !ordered {
		h.apology(w, r, "Due Date Must be Greater or Equal to Start Date of Task", http.StatusBadRequest)
		return
	}
	if !task.Status.Valid() {
		h.apology(w, r, "Invalid Status", http.StatusBadRequest)
		return
	}

	var flashes []string
	var truncated bool
	task.Description, truncated = models.TruncateDescription(task.Description)
	if truncated {
		flashes = append(flashes, flashTruncated)
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.TaskRepo.Create(ctx, task); err != nil {
		h.serverError(w, r, "creating task", err)
		return
	}

	h.log(r).Info("task created", zap.String("username", user.Username), zap.Bool("truncated", truncated))
	h.Sessions.AddFlash(w, r, append(flashes, flashAdded)...)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

/*
handles routes:
- GET /remove_task - every task of the current user
- POST /remove_task - delete one task, then the same listing
*/
func (h *Handler) RemoveTaskPage(w http.ResponseWriter, r *http.Request) {
	h.renderAllTasks(w, r)
}

func (h *Handler) RemoveTask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	taskID, ok := parseTaskID(r)
	if !ok {
		h.apology(w, r, "Invalid Task", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	err := h.TaskRepo.Delete(ctx, taskID, user.Username)
	if errors.Is(err, db.ErrTaskNotFound) {
		h.log(r).Warn("delete of missing or foreign task",
			zap.Int64("task_id", taskID), zap.String("username", user.Username))
	} else if err != nil {
		h.serverError(w, r, "deleting task", err)
		return
	}

	h.renderAllTasks(w, r)
}

func (h *Handler) renderAllTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tasks, err := h.TaskRepo.ListByUsername(ctx, currentUser(r).Username)
	if err != nil {
		h.serverError(w, r, "listing tasks", err)
		return
	}
	h.render(w, r, http.StatusOK, "remove_task", pageData{Title: "Remove Task", Tasks: tasks})
}

func (h *Handler) PendingTasks(w http.ResponseWriter, r *http.Request) {
	h.renderByStatus(w, r, models.TaskStatusPending, "pending_task", "Pending Tasks")
}

func (h *Handler) CompletedTasks(w http.ResponseWriter, r *http.Request) {
	h.renderByStatus(w, r, models.TaskStatusCompleted, "completed_task", "Completed Tasks")
}

func (h *Handler) renderByStatus(w http.ResponseWriter, r *http.Request, status models.TaskStatus, page, title string) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	tasks, err := h.TaskRepo.ListByStatus(ctx, currentUser(r).Username, status)
	if err != nil {
		h.serverError(w, r, "listing tasks by status", err)
		return
	}
	h.render(w, r, http.StatusOK, page, pageData{Title: title, Tasks: tasks})
}

func (h *Handler) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "about", pageData{Title: "About", Content: h.Pages.about})
}

func parseTaskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PostFormValue("task_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
