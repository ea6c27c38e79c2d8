// Package mcp exposes the task service as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marcus/dispatch/internal/service"
	"github.com/marcus/dispatch/internal/store"
	"github.com/marcus/dispatch/internal/tasks"
)

// NewServer creates an MCP server backed by svc.
func NewServer(svc *service.Service, version string) *server.MCPServer {
	s := server.NewMCPServer("Dispatch", version)

	// Tasks
	s.AddTool(mcp.NewTool("create_tasks",
		mcp.WithDescription("Create tasks. Each is ASSIGNED with the default description."),
		mcp.WithArray("tasks",
			mcp.Description("Tasks to create: {reference_id, reference_type, task, assignee_id, priority, task_deadline_time}"),
			mcp.Items(map[string]any{"type": "object"}),
			mcp.Required(),
		),
	), createTasksHandler(svc))

	s.AddTool(mcp.NewTool("update_tasks",
		mcp.WithDescription("Partially update tasks. Omitted fields are left unchanged."),
		mcp.WithArray("updates",
			mcp.Description("Updates: {task_id, status?, description?}"),
			mcp.Items(map[string]any{"type": "object"}),
			mcp.Required(),
		),
	), updateTasksHandler(svc))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by id."),
		mcp.WithNumber("task_id", mcp.Description("Task id"), mcp.Required()),
	), getTaskHandler(svc))

	s.AddTool(mcp.NewTool("update_task_priority",
		mcp.WithDescription("Change the priority of a task."),
		mcp.WithNumber("task_id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("priority", mcp.Description("LOW, MEDIUM, or HIGH"), mcp.Required()),
	), updateTaskPriorityHandler(svc))

	s.AddTool(mcp.NewTool("get_tasks_by_priority",
		mcp.WithDescription("List tasks with a given priority."),
		mcp.WithString("priority", mcp.Description("LOW, MEDIUM, or HIGH"), mcp.Required()),
	), getTasksByPriorityHandler(svc))

	// Reconciliation and queues
	s.AddTool(mcp.NewTool("assign_by_reference",
		mcp.WithDescription("Ensure a reference has exactly one ASSIGNED task per required slot, owned by the assignee. Duplicates are cancelled, missing slots created."),
		mcp.WithNumber("reference_id", mcp.Description("External reference id"), mcp.Required()),
		mcp.WithString("reference_type", mcp.Description("ORDER or ENTITY"), mcp.Required()),
		mcp.WithNumber("assignee_id", mcp.Description("Assignee id"), mcp.Required()),
	), assignByReferenceHandler(svc))

	s.AddTool(mcp.NewTool("fetch_tasks_by_date",
		mcp.WithDescription("Work queue for assignees: open tasks due in [start, end] plus open overdue tasks."),
		mcp.WithArray("assignee_ids",
			mcp.Description("Assignee ids"),
			mcp.Items(map[string]any{"type": "number"}),
			mcp.Required(),
		),
		mcp.WithNumber("start", mcp.Description("Window start, epoch millis"), mcp.Required()),
		mcp.WithNumber("end", mcp.Description("Window end, epoch millis"), mcp.Required()),
	), fetchTasksByDateHandler(svc))

	// Comments
	s.AddTool(mcp.NewTool("add_comment",
		mcp.WithDescription("Add a comment to a task."),
		mcp.WithNumber("task_id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("comment", mcp.Description("Comment text"), mcp.Required()),
		mcp.WithString("author", mcp.Description("Comment author"), mcp.Required()),
	), addCommentHandler(svc))

	s.AddTool(mcp.NewTool("get_task_details",
		mcp.WithDescription("Get a task with its comments and activity history, oldest first."),
		mcp.WithNumber("task_id", mcp.Description("Task id"), mcp.Required()),
	), getTaskDetailsHandler(svc))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type createTaskArgs struct {
	ReferenceID   int64  `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
	Task          string `json:"task"`
	AssigneeID    int64  `json:"assignee_id"`
	Priority      string `json:"priority"`
	Deadline      int64  `json:"task_deadline_time"`
}

type updateTaskArgs struct {
	TaskID      int64   `json:"task_id"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

func createTasksHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var items []createTaskArgs
		if err := decodeArg(request, "tasks", &items); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		reqs := make([]service.CreateTaskRequest, 0, len(items))
		for i, item := range items {
			refType, err := tasks.ParseReferenceType(item.ReferenceType)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("tasks[%d]: %v", i, err)), nil
			}
			taskType, err := tasks.ParseTaskType(item.Task)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("tasks[%d]: %v", i, err)), nil
			}
			priority, err := tasks.ParsePriority(item.Priority)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("tasks[%d]: %v", i, err)), nil
			}
			reqs = append(reqs, service.CreateTaskRequest{
				ReferenceID:   item.ReferenceID,
				ReferenceType: refType,
				Type:          taskType,
				AssigneeID:    item.AssigneeID,
				Priority:      priority,
				Deadline:      item.Deadline,
			})
		}

		created, err := svc.CreateTasks(ctx, reqs)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"tasks": created})
	}
}

func updateTasksHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var items []updateTaskArgs
		if err := decodeArg(request, "updates", &items); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		reqs := make([]service.UpdateTaskRequest, 0, len(items))
		for i, item := range items {
			req := service.UpdateTaskRequest{TaskID: item.TaskID, Description: item.Description}
			if item.Status != nil {
				status, err := tasks.ParseStatus(*item.Status)
				if err != nil {
					return mcp.NewToolResultError(fmt.Sprintf("updates[%d]: %v", i, err)), nil
				}
				req.Status = &status
			}
			reqs = append(reqs, req)
		}

		updated, err := svc.UpdateTasks(ctx, reqs)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"tasks": updated})
	}
}

func getTaskHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := svc.GetTask(ctx, mcp.ParseInt64(request, "task_id", 0))
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(t)
	}
}

func updateTaskPriorityHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		priority, err := tasks.ParsePriority(mcp.ParseString(request, "priority", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := svc.UpdateTaskPriority(ctx, mcp.ParseInt64(request, "task_id", 0), priority)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(t)
	}
}

func getTasksByPriorityHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		priority, err := tasks.ParsePriority(mcp.ParseString(request, "priority", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ts, err := svc.GetTasksByPriority(ctx, priority)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"tasks": nonNil(ts)})
	}
}

func assignByReferenceHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		refType, err := tasks.ParseReferenceType(mcp.ParseString(request, "reference_type", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		msg, err := svc.AssignByReference(ctx,
			mcp.ParseInt64(request, "reference_id", 0),
			refType,
			mcp.ParseInt64(request, "assignee_id", 0),
		)
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func fetchTasksByDateHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var assignees []int64
		if err := decodeArg(request, "assignee_ids", &assignees); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start := mcp.ParseInt64(request, "start", 0)
		end := mcp.ParseInt64(request, "end", 0)
		if end < start {
			return mcp.NewToolResultError("end must not precede start"), nil
		}

		ts, err := svc.FetchTasksByDate(ctx, assignees, start, end)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{"tasks": nonNil(ts)})
	}
}

func addCommentHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		taskID := mcp.ParseInt64(request, "task_id", 0)
		text := mcp.ParseString(request, "comment", "")
		author := mcp.ParseString(request, "author", "")
		if text == "" || author == "" {
			return mcp.NewToolResultError("comment and author are required"), nil
		}
		if err := svc.AddComment(ctx, taskID, text, author); err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Comment added to task %d", taskID)), nil
	}
}

func getTaskDetailsHandler(svc *service.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		details, err := svc.GetTaskDetails(ctx, mcp.ParseInt64(request, "task_id", 0))
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(details)
	}
}

// decodeArg re-decodes a structured argument into dst.
func decodeArg(request mcp.CallToolRequest, key string, dst any) error {
	args, _ := request.Params.Arguments.(map[string]any)
	raw, ok := args[key]
	if !ok {
		return fmt.Errorf("missing argument %q", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func nonNil(ts []*tasks.Task) []*tasks.Task {
	if ts == nil {
		return []*tasks.Task{}
	}
	return ts
}
