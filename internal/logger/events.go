package logger

// События, которыми помечаются записи лога
const (
	EventComponentStarted  = "component_started"
	EventComponentShutdown = "component_shutdown"
	EventFetchFailed       = "fetch_failed"
	EventFetchSuperseded   = "fetch_superseded"
	EventAlertRaised       = "alert_raised"
	EventAlertSuppressed   = "alert_suppressed"
	EventNotifyFailed      = "notify_failed"
	EventStoreInit         = "store_init"
	EventWSConnAdded       = "ws_conn_added"
	EventWSConnRemoved     = "ws_conn_removed"
	EventPanic             = "panic"
)
