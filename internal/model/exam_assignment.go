package model

import "time"

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentGraded    AssignmentStatus = "graded"
)

// ExamAssignment is an exam handed to a student by a teacher. AssignedAt and
// TeacherID are owned by the authoring side and only carried through here.
type ExamAssignment struct {
	ID         uint             `gorm:"primarykey" json:"id"`
	ExamID     uint             `json:"exam_id" gorm:"not null;uniqueIndex:idx_assignment_exam_user"`
	UserID     uint             `json:"user_id" gorm:"not null;uniqueIndex:idx_assignment_exam_user"`
	TeacherID  *uint            `json:"teacher_id,omitempty"`
	AssignedAt *time.Time       `json:"assigned_at,omitempty"`
	DueDate    *time.Time       `json:"due_date,omitempty"`
	Status     AssignmentStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
