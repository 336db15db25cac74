package domain

// DownloadProgress is the state of a single file's download, published on a
// per-file progress channel while a remote fetch is in flight.
type DownloadProgress struct {
	State           DownloadState
	ExpectedBytes   int64 // -1 if unknown
	ReceivedBytes   int64
}

// DownloadState tags the variant of a DownloadProgress.
type DownloadState int

const (
	DownloadWaiting DownloadState = iota
	DownloadStarted
	DownloadReceiving
	DownloadFinished
)

// WaitingProgress returns the zero-value "not started yet" progress.
func WaitingProgress() DownloadProgress { return DownloadProgress{State: DownloadWaiting} }

// StartedProgress returns a "request sent, no bytes yet" progress.
func StartedProgress() DownloadProgress { return DownloadProgress{State: DownloadStarted} }

// ReceivingProgress returns a progress update carrying byte counts.
func ReceivingProgress(expected, received int64) DownloadProgress {
	return DownloadProgress{State: DownloadReceiving, ExpectedBytes: expected, ReceivedBytes: received}
}

// FinishedProgress returns the terminal "download complete" progress.
func FinishedProgress() DownloadProgress { return DownloadProgress{State: DownloadFinished} }

// ModProgressKind tags the variant of a ModProgress.
type ModProgressKind int

const (
	ModWaiting ModProgressKind = iota
	ModStarted
	ModDownloading
	ModFinished
)

// ModProgress is the progress of a single install/update operation,
// published on the change bus wrapped in a Change.
type ModProgress struct {
	Kind ModProgressKind

	// Valid when Kind is ModWaiting, ModStarted, or ModDownloading.
	ID string

	// Valid when Kind is ModDownloading.
	Main DownloadProgress
	Logo DownloadProgress

	// Valid when Kind is ModFinished.
	Mod Mod
}

func WaitingModProgress(id string) ModProgress  { return ModProgress{Kind: ModWaiting, ID: id} }
func StartedModProgress(id string) ModProgress  { return ModProgress{Kind: ModStarted, ID: id} }
func FinishedModProgress(m Mod) ModProgress     { return ModProgress{Kind: ModFinished, Mod: m} }
func DownloadingModProgress(id string, main, logo DownloadProgress) ModProgress {
	return ModProgress{Kind: ModDownloading, ID: id, Main: main, Logo: logo}
}

// ChangeKind tags the variant of a Change.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeUpdate
	ChangeRemove
	ChangeNewVersion
)

// Change is the event published on the change bus. Add/Update carry a
// ModProgress (which may itself be an in-progress Downloading update);
// Remove and NewVersion carry only an id.
type Change struct {
	Kind     ChangeKind
	Progress ModProgress // valid for ChangeAdd, ChangeUpdate
	ID       string      // valid for ChangeRemove, ChangeNewVersion
}

func AddChange(p ModProgress) Change      { return Change{Kind: ChangeAdd, Progress: p} }
func UpdateChange(p ModProgress) Change   { return Change{Kind: ChangeUpdate, Progress: p} }
func RemoveChange(id string) Change       { return Change{Kind: ChangeRemove, ID: id} }
func NewVersionChange(id string) Change   { return Change{Kind: ChangeNewVersion, ID: id} }

// DetectedChangeKind tags the variant of a DetectedChange.
type DetectedChangeKind int

const (
	DetectedAdded DetectedChangeKind = iota
	DetectedRemoved
	DetectedUpdated
	DetectedNewVersion
)

// DetectedChange is published by ModCache when it notices a mutation that
// didn't originate from a command (a local scan diff, or a remote poll
// finding a new file id). It carries no progress; ModManager lifts it into
// a Change with Finished/empty progress before re-publishing.
type DetectedChange struct {
	Kind DetectedChangeKind
	Mod  Mod    // valid for DetectedAdded, DetectedUpdated
	ID   string // valid for DetectedRemoved, DetectedNewVersion
}

func AddedDetected(m Mod) DetectedChange      { return DetectedChange{Kind: DetectedAdded, Mod: m} }
func RemovedDetected(id string) DetectedChange { return DetectedChange{Kind: DetectedRemoved, ID: id} }
func UpdatedDetected(m Mod) DetectedChange    { return DetectedChange{Kind: DetectedUpdated, Mod: m} }
func NewVersionDetected(id string) DetectedChange {
	return DetectedChange{Kind: DetectedNewVersion, ID: id}
}
