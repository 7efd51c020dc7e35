package domain

// TargetKind tells the dispatcher which transport operation a target needs.
type TargetKind string

const (
	TargetContact TargetKind = "contact"
	TargetPhone   TargetKind = "phone"
	TargetGroup   TargetKind = "group"
)

// TargetDescriptor is a single addressable recipient. Address is a
// normalized phone number for contact/phone targets or a group
// identifier for group targets.
type TargetDescriptor struct {
	Kind    TargetKind `json:"kind"`
	Address string     `json:"address"`
}

// DispatchJob is one message-plus-recipients unit of work. Jobs are
// immutable once built and are not persisted; a job waiting on an
// in-memory timer is lost on process restart.
type DispatchJob struct {
	JobID       string
	OwnerID     string
	Targets     []TargetDescriptor
	Content     string
	GroupFanout bool
}

// DispatchResult partitions a job's targets into acknowledged and
// failed addresses. Every target appears in exactly one of the two
// slices once the batch completes.
type DispatchResult struct {
	Successful []string
	Failed     []string
	// DeliveryIDs maps acknowledged addresses to the transport's
	// delivery id for that send.
	DeliveryIDs map[string]string
}
