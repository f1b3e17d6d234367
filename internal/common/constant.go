package common

// FilesRoutePrefix is the URL path under which uploaded files are served.
// Chat clients and the FileMania rewrite rely on it.
const FilesRoutePrefix = "/files/"

// AutoAISender is the sender name used for AutoAI failure notices.
const AutoAISender = "AutoAI"
