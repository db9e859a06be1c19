package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrack/classtrack-api/internal/models"
	appErrors "github.com/classtrack/classtrack-api/pkg/errors"
)

type mockClassStore struct {
	classes map[string]*models.Class
	members map[string][]models.ClassMember
	added   []string
	removed []string
}

func newMockClassStore() *mockClassStore {
	return &mockClassStore{
		classes: make(map[string]*models.Class),
		members: make(map[string][]models.ClassMember),
	}
}

func (m *mockClassStore) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *class
	return &clone, nil
}

func (m *mockClassStore) List(_ context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	out := make([]models.Class, 0)
	for _, class := range m.classes {
		if filter.TeacherID != "" && class.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *class)
	}
	return out, len(out), nil
}

func (m *mockClassStore) Create(_ context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = "class-generated"
	}
	clone := *class
	m.classes[class.ID] = &clone
	return nil
}

func (m *mockClassStore) Update(_ context.Context, class *models.Class) error {
	if _, ok := m.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *class
	m.classes[class.ID] = &clone
	return nil
}

func (m *mockClassStore) ListMembers(_ context.Context, classID string) ([]models.ClassMember, error) {
	return m.members[classID], nil
}

func (m *mockClassStore) AddMember(_ context.Context, classID, studentID string) error {
	m.added = append(m.added, studentID)
	m.members[classID] = append(m.members[classID], models.ClassMember{
		ClassStudent: models.ClassStudent{ClassID: classID, StudentID: studentID},
	})
	return nil
}

func (m *mockClassStore) RemoveMember(_ context.Context, classID, studentID string) error {
	m.removed = append(m.removed, studentID)
	return nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func classFixture() (*ClassService, *mockClassStore) {
	store := newMockClassStore()
	store.classes["class1"] = &models.Class{
		ID:         "class1",
		Name:       "Biology 9",
		Subject:    "Science",
		GradeLevel: "9",
		TeacherID:  "teach1",
		SchoolYear: "2026-2027",
		Quarter:    1,
		Active:     true,
	}
	users := &mockUserReader{users: map[string]*models.User{
		"stu1":   {ID: "stu1", FullName: "Alice", Role: models.RoleStudent, Active: true},
		"teach2": {ID: "teach2", FullName: "Pat", Role: models.RoleTeacher, Active: true},
	}}
	svc := NewClassService(store, users, validator.New(), zap.NewNop())
	return svc, store
}

func TestClassServiceCreate(t *testing.T) {
	svc, store := classFixture()

	class, err := svc.Create(context.Background(), "teach1", CreateClassRequest{
		Name:       "Chemistry 10",
		Subject:    "Science",
		GradeLevel: "10",
		SchoolYear: "2026-2027",
		Quarter:    2,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, class.ID)
	assert.Equal(t, "teach1", class.TeacherID)
	assert.True(t, class.Active)
	assert.Len(t, store.classes, 2)
}

func TestClassServiceCreateInvalidQuarter(t *testing.T) {
	svc, _ := classFixture()

	_, err := svc.Create(context.Background(), "teach1", CreateClassRequest{
		Name:       "Chemistry 10",
		Subject:    "Science",
		GradeLevel: "10",
		SchoolYear: "2026-2027",
		Quarter:    5,
	})

	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassServiceUpdatePartial(t *testing.T) {
	svc, _ := classFixture()

	name := "Biology 9 Honors"
	active := false
	class, err := svc.Update(context.Background(), "teach1", "class1", UpdateClassRequest{
		Name:   &name,
		Active: &active,
	})

	require.NoError(t, err)
	assert.Equal(t, "Biology 9 Honors", class.Name)
	assert.False(t, class.Active)
	// Untouched fields survive the partial update.
	assert.Equal(t, "Science", class.Subject)
	assert.Equal(t, 1, class.Quarter)
}

func TestClassServiceUpdateWrongTeacher(t *testing.T) {
	svc, _ := classFixture()

	name := "Hijacked"
	_, err := svc.Update(context.Background(), "teach2", "class1", UpdateClassRequest{Name: &name})

	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestClassServiceGetMissing(t *testing.T) {
	svc, _ := classFixture()

	_, err := svc.Get(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassServiceEnroll(t *testing.T) {
	svc, store := classFixture()

	err := svc.Enroll(context.Background(), "teach1", "class1", "stu1")

	require.NoError(t, err)
	assert.Contains(t, store.added, "stu1")

	members, err := svc.Members(context.Background(), "class1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestClassServiceEnrollNonStudent(t *testing.T) {
	svc, store := classFixture()

	err := svc.Enroll(context.Background(), "teach1", "class1", "teach2")

	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.added)
}

func TestClassServiceEnrollUnknownStudent(t *testing.T) {
	svc, _ := classFixture()

	err := svc.Enroll(context.Background(), "teach1", "class1", "ghost")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestClassServiceEnrollWrongTeacher(t *testing.T) {
	svc, store := classFixture()

	err := svc.Enroll(context.Background(), "teach2", "class1", "stu1")

	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.added)
}

func TestClassServiceUnenroll(t *testing.T) {
	svc, store := classFixture()

	require.NoError(t, svc.Enroll(context.Background(), "teach1", "class1", "stu1"))
	require.NoError(t, svc.Unenroll(context.Background(), "teach1", "class1", "stu1"))

	assert.Contains(t, store.removed, "stu1")
}
