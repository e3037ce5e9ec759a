package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/apperr"
	"opsdesk/internal/models"
	"opsdesk/internal/testutil"
	"opsdesk/internal/workflow"
)

func setup(t *testing.T, checklist []string) (*Service, uint) {
	t.Helper()
	db := testutil.NewDB(t)
	tenant := testutil.NewTenant(t, db, "acme", "pro")
	require.NoError(t, workflow.SeedDefaults(db, tenant.ID))
	wf := workflow.NewService(db, zap.NewNop())
	return NewService(db, wf, checklist), tenant.ID
}

func TestService_HireAndCompleteInOrder(t *testing.T) {
	svc, tenantID := setup(t, []string{"Paperwork", "Laptop", "Intro"})
	ctx := context.Background()

	emp := &models.Employee{FirstName: "Ada", LastName: "Lovelace", Status: models.EmployeeActive}
	require.NoError(t, svc.Hire(ctx, tenantID, emp))
	assert.Equal(t, models.EmployeeOnboarding, emp.Status, "status comes from the workflow")

	p, err := svc.Progress(ctx, tenantID, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, "Laptop", p.Tasks[1].Title)

	_, err = svc.Complete(ctx, tenantID, emp.ID, 2, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	p, err = svc.Complete(ctx, tenantID, emp.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Completed)

	_, err = svc.Complete(ctx, tenantID, emp.ID, 1, 1)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Complete(ctx, tenantID, emp.ID, 7, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "step 2 is still open before 7")

	_, err = svc.Complete(ctx, tenantID, emp.ID, 2, 1)
	require.NoError(t, err)
	p, err = svc.Complete(ctx, tenantID, emp.ID, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Completed)
	assert.Equal(t, models.EmployeeActive, p.EmployeeStatus)

	history, err := workflow.NewService(svc.db, zap.NewNop()).History(ctx, tenantID, "employee", emp.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "onboarding complete", history[0].Note)

	_, err = svc.Complete(ctx, tenantID, emp.ID, 3, 1)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "employee is no longer onboarding")
}

func TestService_HireValidatesReferences(t *testing.T) {
	svc, tenantID := setup(t, []string{"Paperwork"})
	manager := uint(404)
	err := svc.Hire(context.Background(), tenantID, &models.Employee{FirstName: "A", LastName: "B", ManagerID: &manager})
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "manager_id", ve.Field)
}

func TestService_UnknownEmployee(t *testing.T) {
	svc, tenantID := setup(t, nil)
	_, err := svc.Progress(context.Background(), tenantID, 77)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
