package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Realtime
	FieldConnID = "conn_id"
	FieldUserID = "user_id"
	FieldRoomID = "room_id"
	FieldEvent  = "event"

	// Service
	FieldService = "service"
)
