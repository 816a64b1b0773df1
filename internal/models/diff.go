package models

// DiffAction classifies what an entry does to its destination side.
type DiffAction string

const (
	ActionCreate DiffAction = "create"
	ActionUpdate DiffAction = "update"
	ActionDelete DiffAction = "delete"
)

// Direction indicates which way content moves.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// SyncDiffEntry is one planned operation against the destination side.
type SyncDiffEntry struct {
	Path      string     `json:"path"`
	Action    DiffAction `json:"action"`
	Direction Direction  `json:"direction"`
	SizeBytes int64      `json:"size_bytes"`
	Reason    string     `json:"reason"`
}

// SyncDiff is the plan for one reconciliation cycle. It is a pure
// computation result, recomputed every cycle and never persisted.
// TotalBytes sums create and update entries; deletes move no content.
type SyncDiff struct {
	Uploads    []SyncDiffEntry `json:"uploads"`
	Downloads  []SyncDiffEntry `json:"downloads"`
	Deletes    []SyncDiffEntry `json:"deletes"`
	TotalBytes int64           `json:"total_bytes"`
}

// Add routes an entry into the right sequence and accumulates TotalBytes.
func (d *SyncDiff) Add(entry SyncDiffEntry) {
	switch {
	case entry.Action == ActionDelete:
		d.Deletes = append(d.Deletes, entry)
	case entry.Direction == DirectionUpload:
		d.Uploads = append(d.Uploads, entry)
		d.TotalBytes += entry.SizeBytes
	default:
		d.Downloads = append(d.Downloads, entry)
		d.TotalBytes += entry.SizeBytes
	}
}

// Transfers returns the create/update entries in plan order.
func (d *SyncDiff) Transfers() []SyncDiffEntry {
	transfers := make([]SyncDiffEntry, 0, len(d.Uploads)+len(d.Downloads))
	transfers = append(transfers, d.Uploads...)
	transfers = append(transfers, d.Downloads...)
	return transfers
}

// Len returns the total number of planned entries.
func (d *SyncDiff) Len() int {
	return len(d.Uploads) + len(d.Downloads) + len(d.Deletes)
}

// IsEmpty reports whether the plan contains no work.
func (d *SyncDiff) IsEmpty() bool {
	return d.Len() == 0
}
