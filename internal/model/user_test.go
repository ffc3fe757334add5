package model

import (
	"errors"
	"testing"
)

func TestRoleDecisionTable(t *testing.T) {
	tests := []struct {
		role       Role
		permission bool
		canSit     bool
		revoke     bool
	}{
		{RoleCandidate, true, true, true},
		{RoleCandidate, false, false, false},
		{RoleAdmin, false, true, false},
		{RoleAdmin, true, true, false},
		{RoleFounder, true, true, false},
		{Role("intern"), true, true, true},
	}

	for _, tt := range tests {
		u := User{Role: tt.role, ExamPermission: tt.permission}
		if got := u.CanSitExam(); got != tt.canSit {
			t.Errorf("%s/%v CanSitExam() = %v, want %v", tt.role, tt.permission, got, tt.canSit)
		}
		if got := u.ShouldRevokePermission(); got != tt.revoke {
			t.Errorf("%s/%v ShouldRevokePermission() = %v, want %v", tt.role, tt.permission, got, tt.revoke)
		}
	}

	if Role("intern").Valid() || !RoleFounder.Valid() {
		t.Fatal("Valid() mismatch")
	}
	if !RoleAdmin.Policy().AdminAccess || RoleCandidate.Policy().AdminAccess {
		t.Fatal("AdminAccess mismatch")
	}
}

func TestErrorKinds(t *testing.T) {
	if !errors.Is(ErrAlreadyAnswered, ErrConflict) {
		t.Fatal("ErrAlreadyAnswered should be a conflict")
	}
	if !errors.Is(ErrQuestionNotAllowed, ErrBadRequest) || errors.Is(ErrQuestionNotAllowed, ErrNotFound) {
		t.Fatal("ErrQuestionNotAllowed kind mismatch")
	}
	if ErrSessionNotLive.Error() != "session is not active" {
		t.Fatalf("unexpected message %q", ErrSessionNotLive.Error())
	}
}
