package model

// Table and column names of the persisted schema. Generated SQL refers to
// these names only.
const (
	TableLog      = "log"
	TableProperty = "log_property"
	TableQuery    = "log_query"

	ColID              = "id"
	ColMessage         = "message"
	ColMessageTemplate = "messageTemplate"
	ColLevel           = "level"
	ColTimestamp       = "timestamp"
	ColException       = "exception"

	ColLogID = "logId"
	ColName  = "name"
	ColValue = "value"

	ColQuery = "query"
)
