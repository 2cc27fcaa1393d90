package cli

import "time"

type session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type user struct {
	UID         string  `json:"uid"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	FamilyID    *string `json:"familyId"`
	DisplayName string  `json:"display_name"`
}

type family struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Head       string   `json:"head"`
	Members    []string `json:"members"`
	InviteCode string   `json:"inviteCode"`
}

type createdFamily struct {
	InviteCode string `json:"invite_code"`
	Family     family `json:"family"`
}

type member struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsHead      bool   `json:"is_head"`
}

type task struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	DueDate    string `json:"dueDate"`
	Assignee   string `json:"assignee"`
	AssignedBy string `json:"assignedBy"`
	Completed  bool   `json:"completed"`
	Priority   string `json:"priority"`
}

type overview struct {
	PendingTasks  int `json:"pending_tasks"`
	LowStockItems int `json:"low_stock_items"`
	ShoppingItems int `json:"shopping_items"`
}
