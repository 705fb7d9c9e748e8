package rbac

const (
	PermGrade          = "grade:compute"
	PermExerciseCreate = "exercise:create"
	PermExerciseView   = "exercise:view"
	PermExerciseKeys   = "exercise:view-keys"
	PermAttemptCreate  = "attempt:create"
	PermAttemptSave    = "attempt:save"
	PermAttemptSubmit  = "attempt:submit"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermGradeRecord    = "grade:record"
	PermGradeViewAll   = "grade:view-all"
	PermGradeSync      = "grade:sync"
	PermEventView      = "event:view" // admin only
)

// RolePermissions is the default policy used by Require and friends.
var RolePermissions = Policy{
	"student": {
		PermGrade,
		PermExerciseView,
		PermAttemptCreate,
		PermAttemptSave,
		PermAttemptSubmit,
		PermAttemptViewOwn,
		PermGradeRecord, // own grades only, enforced by the handler
	},
	"teacher": {
		PermGrade,
		"exercise:*",
		PermAttemptViewAll,
		PermGradeRecord,
		PermGradeViewAll,
		PermGradeSync,
	},
	"admin": {
		"*",
	},
}
