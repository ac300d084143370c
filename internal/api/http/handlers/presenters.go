package handlers

import (
	"github.com/spec-kit/workspace-tracker/internal/api/dto"
	"github.com/spec-kit/workspace-tracker/internal/domain"
)

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		UserType:   string(u.Type),
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
	}
}

func workspaceResponse(ws *domain.Workspace) dto.WorkspaceResponse {
	return dto.WorkspaceResponse{
		ID:        ws.ID,
		Name:      ws.Name,
		CreatedBy: ws.CreatedBy,
		AdminID:   ws.AdminID,
		CreatedAt: ws.CreatedAt,
		UpdatedAt: ws.UpdatedAt,
	}
}

func workspaceList(items []domain.Workspace) []dto.WorkspaceResponse {
	out := make([]dto.WorkspaceResponse, 0, len(items))
	for i := range items {
		out = append(out, workspaceResponse(&items[i]))
	}
	return out
}

func roleResponse(r *domain.Role) dto.RoleResponse {
	perms := make([]dto.PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, dto.PermissionResponse{ID: p.ID, Entity: string(p.Entity), Operation: string(p.Operation)})
	}
	return dto.RoleResponse{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: perms,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleList(items []domain.Role) []dto.RoleResponse {
	out := make([]dto.RoleResponse, 0, len(items))
	for i := range items {
		out = append(out, roleResponse(&items[i]))
	}
	return out
}

func assignmentResponse(a *domain.Assignment) dto.AssignmentResponse {
	resp := dto.AssignmentResponse{
		ID:          a.ID,
		UserID:      a.UserID,
		RoleID:      a.RoleID,
		WorkspaceID: a.WorkspaceID,
		CreatedAt:   a.CreatedAt,
	}
	if a.Role != nil {
		role := roleResponse(a.Role)
		resp.Role = &role
	}
	if a.User != nil {
		user := userResponse(a.User)
		resp.User = &user
	}
	return resp
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          t.ID,
		WorkspaceID: t.WorkspaceID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		TicketType:  string(t.Type),
		AssignedTo:  t.AssignedTo,
		DueDate:     t.DueDate,
		ParentID:    t.ParentID,
		CreatedBy:   t.CreatedBy,
		UpdatedBy:   t.UpdatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func ticketList(items []domain.Ticket) []dto.TicketResponse {
	out := make([]dto.TicketResponse, 0, len(items))
	for i := range items {
		out = append(out, ticketResponse(&items[i]))
	}
	return out
}

func historyList(rows []domain.TicketHistory) []dto.TicketHistoryResponse {
	out := make([]dto.TicketHistoryResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, dto.TicketHistoryResponse{
			ID:           h.ID,
			TicketID:     h.TicketID,
			FieldChanged: h.FieldChanged,
			OldValue:     h.OldValue,
			NewValue:     h.NewValue,
			Action:       string(h.Action),
			ChangedBy:    h.ChangedBy,
			CreatedAt:    h.CreatedAt,
		})
	}
	return out
}

func commentResponse(c *domain.Comment) dto.CommentResponse {
	resp := dto.CommentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		UserID:    c.UserID,
		Message:   c.Message,
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for i := range c.Replies {
		resp.Replies = append(resp.Replies, commentResponse(&c.Replies[i]))
	}
	return resp
}
