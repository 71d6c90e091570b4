package update

// Internal flags used to re-invoke the executable in a specific role. They
// are hidden from the public command line.
const (
	FlagUpdaterTask = "updater-task"
	FlagClearance   = "updater-task-clearance"
)

// Invocation is the internal flag a process was started with.
type Invocation int

const (
	InvocationNormal Invocation = iota
	InvocationUpdaterTask
	InvocationClearance
)

// InvocationFromFlags maps the two internal flags to an Invocation.
// --updater-task wins when both are present.
func InvocationFromFlags(updaterTask, clearance bool) Invocation {
	switch {
	case updaterTask:
		return InvocationUpdaterTask
	case clearance:
		return InvocationClearance
	default:
		return InvocationNormal
	}
}

// Role is the part a process plays in the update handshake.
type Role int

const (
	// RoleInitiating downloads and stages the update. Only entered when an
	// update is requested on a normal invocation.
	RoleInitiating Role = iota
	// RoleUpdaterTask is the staged binary copying itself over the original.
	RoleUpdaterTask
	// RoleClearance is the updated original removing the staged binary.
	RoleClearance
	// RoleNoop means the flag does not fit the executable's name.
	RoleNoop
)

func (r Role) String() string {
	switch r {
	case RoleInitiating:
		return "initiating"
	case RoleUpdaterTask:
		return "updater-task"
	case RoleClearance:
		return "clearance"
	default:
		return "noop"
	}
}

type roleKey struct {
	staged     bool
	invocation Invocation
}

var roleTable = map[roleKey]Role{
	{false, InvocationNormal}:      RoleInitiating,
	{true, InvocationNormal}:       RoleInitiating,
	{true, InvocationUpdaterTask}:  RoleUpdaterTask,
	{false, InvocationUpdaterTask}: RoleNoop,
	{false, InvocationClearance}:   RoleClearance,
	{true, InvocationClearance}:    RoleNoop,
}

// ResolveRole selects the role from whether the executable's own name
// carries the staged prefix and the flag it was invoked with.
func ResolveRole(staged bool, inv Invocation) Role {
	if r, ok := roleTable[roleKey{staged, inv}]; ok {
		return r
	}
	return RoleNoop
}
