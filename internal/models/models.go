package models

import (
	"slices"
	"strings"
	"time"
)

// Collection names.
const (
	CollectionUsers       = "users"
	CollectionFamilies    = "families"
	CollectionCredentials = "credentials"
	CollectionTasks       = "tasks"
	CollectionInventory   = "inventory"
	CollectionShopping    = "shopping"
)

// Document field names shared by several writers.
const (
	FieldUID        = "uid"
	FieldEmail      = "email"
	FieldName       = "name"
	FieldFamilyID   = "familyId"
	FieldHead       = "head"
	FieldMembers    = "members"
	FieldInviteCode = "inviteCode"
	FieldCompleted  = "completed"
	FieldIsLowStock = "isLowStock"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
)

// UserRecord is the users/{uid} document.
//
// FamilyID is a lookup key into families, not an ownership pointer. It is
// nil exactly when the user belongs to no family.
type UserRecord struct {
	UID       string     `json:"uid" validate:"required"`
	Email     string     `json:"email" validate:"required"`
	Name      string     `json:"name,omitempty"`
	FamilyID  *string    `json:"familyId"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// InFamily reports whether the user currently belongs to a family.
func (u UserRecord) InFamily() bool {
	return u.FamilyID != nil && *u.FamilyID != ""
}

// DisplayName is the user's name, falling back to the local part of their
// email address.
func (u UserRecord) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	if local == "" {
		return "Unknown"
	}
	return local
}

// FamilyRecord is the families/{id} document. ID comes from the document
// key, not the body.
type FamilyRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name" validate:"required"`
	Head       string     `json:"head" validate:"required"`
	Members    []string   `json:"members" validate:"unique"`
	InviteCode string     `json:"inviteCode" validate:"required,len=6,alphanum,uppercase"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// HasMember reports whether uid is in the member set.
func (f FamilyRecord) HasMember(uid string) bool {
	return slices.Contains(f.Members, uid)
}

// Credential is the credentials/{email} document the identity provider
// checks passwords against. The key is the lowercased email.
type Credential struct {
	UID          string `json:"uid" validate:"required"`
	Email        string `json:"email" validate:"required"`
	PasswordHash string `json:"passwordHash" validate:"required"`
}

// Priority ranks tasks and shopping items.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Task is a tasks/{id} document: a chore assigned within a family.
type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title" validate:"required"`
	DueDate    string     `json:"dueDate" validate:"required"`
	Assignee   string     `json:"assignee" validate:"required"`
	AssignedBy string     `json:"assignedBy"`
	Completed  bool       `json:"completed"`
	Priority   Priority   `json:"priority" validate:"oneof=high medium low"`
	FamilyID   string     `json:"familyId" validate:"required"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// InventoryItem is an inventory/{id} document: something the household has.
type InventoryItem struct {
	ID         string     `json:"id"`
	Name       string     `json:"name" validate:"required"`
	Quantity   string     `json:"quantity" validate:"required"`
	Category   string     `json:"category" validate:"required"`
	IsLowStock bool       `json:"isLowStock"`
	FamilyID   string     `json:"familyId" validate:"required"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// ShoppingItem is a shopping/{id} document: something the household needs.
type ShoppingItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name" validate:"required"`
	Quantity  string     `json:"quantity" validate:"required"`
	Category  string     `json:"category" validate:"required"`
	Priority  Priority   `json:"priority" validate:"oneof=high medium low"`
	FamilyID  string     `json:"familyId" validate:"required"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}
