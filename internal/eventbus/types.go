package eventbus

import "time"

// Topic identifies a logical channel on the bus.
type Topic string

// Topics published by the update and sync pipelines.
const (
	TopicCheckStarted     Topic = "update.check_started"
	TopicCheckCompleted   Topic = "update.check_completed"
	TopicNotify           Topic = "update.notify"
	TopicSyncProgress     Topic = "sync.progress"
	TopicComponentUpdated Topic = "sync.component_updated"
	TopicSyncError        Topic = "sync.error"
)

// Source describes which component produced an event.
type Source string

const (
	SourceScheduler  Source = "scheduler"
	SourceAppUpdater Source = "app_updater"
	SourceModelSync  Source = "model_sync"
	SourceTransfer   Source = "transfer"
	SourceGateway    Source = "gateway"
	SourceUnknown    Source = "unknown"
)

// CheckKind distinguishes the two pipelines fanned out by the scheduler.
type CheckKind string

const (
	CheckApp    CheckKind = "app"
	CheckModels CheckKind = "models"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       any
}

// CheckStartedEvent is published immediately before a check runs.
type CheckStartedEvent struct {
	Kind   CheckKind
	Forced bool
}

// CheckCompletedEvent reports the outcome of a check.
type CheckCompletedEvent struct {
	Kind      CheckKind
	HasUpdate bool
	Err       string
}

// NotifyEvent is a user-facing notification forwarded to the UI collaborator.
type NotifyEvent struct {
	Title   string
	Message string
}

// SyncProgressEvent reports transfer progress for a component. Percent is -1
// when the total size is unknown; Bytes is always the cumulative count.
type SyncProgressEvent struct {
	ComponentID string
	Percent     int
	Bytes       int64
	Status      string
}

// ComponentUpdatedEvent is published after a component finished installing
// and its ledger entry was advanced.
type ComponentUpdatedEvent struct {
	ComponentID string
	Version     string
}

// ErrorCategory classifies pipeline failures so subscribers can apply
// different retry and notification policy per category.
type ErrorCategory string

const (
	ErrorTransport ErrorCategory = "transport"
	ErrorIntegrity ErrorCategory = "integrity"
	ErrorBackup    ErrorCategory = "backup"
	ErrorInstall   ErrorCategory = "install"
)

// SyncErrorEvent reports a pipeline failure.
type SyncErrorEvent struct {
	ComponentID string
	Category    ErrorCategory
	Message     string
}

// Typed topic descriptors. Each TopicDef binds a Topic constant to its
// payload type, enforced at compile time via Publish and SubscribeTo.
var (
	CheckStarted     = NewTopicDef[CheckStartedEvent](TopicCheckStarted)
	CheckCompleted   = NewTopicDef[CheckCompletedEvent](TopicCheckCompleted)
	Notify           = NewTopicDef[NotifyEvent](TopicNotify)
	SyncProgress     = NewTopicDef[SyncProgressEvent](TopicSyncProgress)
	ComponentUpdated = NewTopicDef[ComponentUpdatedEvent](TopicComponentUpdated)
	SyncError        = NewTopicDef[SyncErrorEvent](TopicSyncError)
)
