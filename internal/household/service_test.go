package household

import (
	"context"
	"testing"

	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
)

func setupService(t *testing.T) (*Service, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	svc := NewService(
		store,
		repository.NewUserStore(store),
		repository.NewTaskStore(store),
		repository.NewInventoryStore(store),
		repository.NewShoppingStore(store),
		zap.NewNop(),
	)

	seed := []struct {
		uid, name, email string
		familyID         any
	}{
		{"alice", "Alice", "alice@example.com", "fam1"},
		{"bob", "", "bob@example.com", "fam1"},
		{"carol", "Carol", "carol@example.com", "fam2"},
		{"dave", "Dave", "dave@example.com", nil},
	}
	for _, u := range seed {
		err := store.Set(context.Background(), models.CollectionUsers, u.uid, docstore.Fields{
			models.FieldUID:      u.uid,
			models.FieldName:     u.name,
			models.FieldEmail:    u.email,
			models.FieldFamilyID: u.familyID,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", u.uid, err)
		}
	}
	return svc, store
}

func assertCode(t *testing.T, err error, want apperr.Code) {
	t.Helper()
	if got := apperr.CodeOf(err); err == nil || got != want {
		t.Fatalf("expected %s, got %v", want, err)
	}
}

func TestTasks_Lifecycle(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, "bob", NewTask{Title: "  Dishes ", DueDate: "2026-03-02", Assignee: "alice"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if task.Title != "Dishes" || task.Priority != models.PriorityMedium || task.Completed {
		t.Fatalf("unexpected task %+v", task)
	}
	if task.AssignedBy != "bob" {
		t.Fatalf("assignedBy = %q, want bob", task.AssignedBy)
	}
	if task.FamilyID != "fam1" || task.CreatedAt == nil {
		t.Fatalf("family or timestamps missing: %+v", task)
	}

	if _, err := svc.AddTask(ctx, "alice", NewTask{Title: "Laundry", DueDate: "2026-03-03", Assignee: "bob", Priority: "HIGH"}); err != nil {
		t.Fatalf("add second: %v", err)
	}

	done, err := svc.SetTaskCompleted(ctx, "alice", task.ID, true)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed {
		t.Fatal("task not completed")
	}

	pending := false
	active, err := svc.ListTasks(ctx, "alice", &pending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Title != "Laundry" {
		t.Fatalf("active tasks = %+v", active)
	}

	all, err := svc.ListTasks(ctx, "bob", nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}

	// Returning a task to the active list.
	if _, err := svc.SetTaskCompleted(ctx, "bob", task.ID, false); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := svc.DeleteTask(ctx, "bob", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ = svc.ListTasks(ctx, "bob", nil)
	if len(all) != 1 {
		t.Fatalf("expected 1 task after delete, got %d", len(all))
	}
}

func TestTasks_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewTask
	}{
		{"missing title", NewTask{Title: " ", DueDate: "2026-03-02", Assignee: "bob"}},
		{"missing assignee", NewTask{Title: "Dishes", DueDate: "2026-03-02"}},
		{"unknown priority", NewTask{Title: "Dishes", DueDate: "2026-03-02", Assignee: "bob", Priority: "urgent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddTask(ctx, "alice", tt.in)
			assertCode(t, err, apperr.CodeInvalidInput)
		})
	}
}

func TestItems_ScopedToFamily(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, "alice", NewTask{Title: "Dishes", DueDate: "2026-03-02", Assignee: "bob"})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	item, err := svc.AddInventoryItem(ctx, "alice", NewInventoryItem{Name: "Rice", Quantity: "2kg", Category: "Pantry"})
	if err != nil {
		t.Fatalf("add inventory: %v", err)
	}
	buy, err := svc.AddShoppingItem(ctx, "alice", NewShoppingItem{Name: "Milk", Quantity: "1", Category: "Dairy"})
	if err != nil {
		t.Fatalf("add shopping: %v", err)
	}

	// carol is in another family: the items look missing to her.
	_, err = svc.SetTaskCompleted(ctx, "carol", task.ID, true)
	assertCode(t, err, apperr.CodeNotFound)
	assertCode(t, svc.DeleteInventoryItem(ctx, "carol", item.ID), apperr.CodeNotFound)
	assertCode(t, svc.DeleteShoppingItem(ctx, "carol", buy.ID), apperr.CodeNotFound)

	tasks, err := svc.ListTasks(ctx, "carol", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("carol sees %d tasks", len(tasks))
	}

	// dave has no family at all.
	_, err = svc.ListShopping(ctx, "dave")
	assertCode(t, err, apperr.CodeNotInFamily)
	_, err = svc.AddTask(ctx, "dave", NewTask{Title: "x", DueDate: "y", Assignee: "z"})
	assertCode(t, err, apperr.CodeNotInFamily)
}

func TestInventory_UpdateAndLowStock(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	rice, err := svc.AddInventoryItem(ctx, "alice", NewInventoryItem{Name: "Rice", Quantity: "2kg", Category: "Pantry"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddInventoryItem(ctx, "bob", NewInventoryItem{Name: "Soap", Quantity: "1", Category: "Bathroom", IsLowStock: true}); err != nil {
		t.Fatalf("add: %v", err)
	}

	low := true
	qty := " 200g "
	updated, err := svc.UpdateInventoryItem(ctx, "bob", rice.ID, InventoryUpdate{Quantity: &qty, IsLowStock: &low})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != "200g" || !updated.IsLowStock || updated.Name != "Rice" {
		t.Fatalf("unexpected item %+v", updated)
	}

	lowItems, err := svc.ListInventory(ctx, "alice", true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lowItems) != 2 {
		t.Fatalf("expected 2 low stock items, got %d", len(lowItems))
	}

	empty := ""
	_, err = svc.UpdateInventoryItem(ctx, "alice", rice.ID, InventoryUpdate{Name: &empty})
	assertCode(t, err, apperr.CodeInvalidInput)
	_, err = svc.UpdateInventoryItem(ctx, "alice", rice.ID, InventoryUpdate{})
	assertCode(t, err, apperr.CodeInvalidInput)

	if err := svc.DeleteInventoryItem(ctx, "alice", rice.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ := svc.ListInventory(ctx, "alice", false)
	if len(all) != 1 || all[0].Name != "Soap" {
		t.Fatalf("inventory after delete = %+v", all)
	}
}

func TestOverview(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for _, title := range []string{"Dishes", "Laundry", "Vacuum"} {
		if _, err := svc.AddTask(ctx, "alice", NewTask{Title: title, DueDate: "2026-03-02", Assignee: "bob"}); err != nil {
			t.Fatalf("add task: %v", err)
		}
	}
	tasks, _ := svc.ListTasks(ctx, "alice", nil)
	if _, err := svc.SetTaskCompleted(ctx, "alice", tasks[0].ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.AddInventoryItem(ctx, "alice", NewInventoryItem{Name: "Soap", Quantity: "1", Category: "Bathroom", IsLowStock: true}); err != nil {
		t.Fatalf("add inventory: %v", err)
	}
	if _, err := svc.AddShoppingItem(ctx, "bob", NewShoppingItem{Name: "Milk", Quantity: "1", Category: "Dairy", Priority: models.PriorityHigh}); err != nil {
		t.Fatalf("add shopping: %v", err)
	}
	// Another family's data does not count.
	if _, err := svc.AddTask(ctx, "carol", NewTask{Title: "Other", DueDate: "2026-03-02", Assignee: "carol"}); err != nil {
		t.Fatalf("add task: %v", err)
	}

	got, err := svc.Overview(ctx, "bob")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	want := Overview{PendingTasks: 2, LowStockItems: 1, ShoppingItems: 1}
	if *got != want {
		t.Fatalf("overview = %+v, want %+v", *got, want)
	}
}
