package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-service/internal/domain"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func TestValidate_FieldMessages(t *testing.T) {
	err := Validate(&AssociateRequest{Email: "not-an-email", Username: "ann"})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, "Enter a valid email address.", de.Details["email"])
	assert.Equal(t, "This field is required.", de.Details["first_name"])
	assert.Equal(t, "This field is required.", de.Details["last_name"])
	assert.NotContains(t, de.Details, "username")

	assert.NoError(t, Validate(&LoginRequest{Username: "ann", Password: "x"}))
}

func TestNewExportResponse(t *testing.T) {
	assigned := domain.CategoryAssigned
	associate := "assoc-1"
	resp := NewExportResponse([]domain.Ticket{
		{Title: "a", Description: "d", Type: domain.TicketType2, DepartmentID: "dept-1", AssociateID: &associate, Category: &assigned},
		{Title: "b", Type: domain.TicketType1, DepartmentID: "dept-1"},
	})
	require.Len(t, resp.QS, 2)
	assert.Equal(t, ExportRow{Title: "a", Description: "d", Type: 2, Category: &assigned, Department: "dept-1", Associate: &associate}, resp.QS[0])
	assert.Nil(t, resp.QS[1].Category)
	assert.Nil(t, resp.QS[1].Associate)

	assert.NotNil(t, NewExportResponse(nil).QS)
}

func TestNewTicketResponse_ResolvesFileURLs(t *testing.T) {
	key := "ticket_files/ticket_1/0b6f5c1e-3f0a-4d8e-9c55-1d2e3f4a5b6c_a.pdf"
	resp := NewTicketResponse(&domain.Ticket{ID: "1", Type: domain.TicketType3, UploadedFile: &key}, func(k string) string { return "/media/" + k })
	require.NotNil(t, resp.UploadedFile)
	assert.Equal(t, "/media/"+key, resp.UploadedFile.URL)
	assert.Equal(t, "a.pdf", resp.UploadedFile.Name)
	assert.Nil(t, resp.UploadedImage)
	assert.Equal(t, "Type 3", resp.TypeLabel)
}
