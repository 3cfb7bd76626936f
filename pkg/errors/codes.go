package errors

// Codes live in the JSON-RPC server range so that a tool server can surface
// them to remote callers unchanged.
const (
	// JSON-RPC 2.0 codes still used by the tool server
	CodeInvalidParams  int = -32602
	CodeInternalError  int = -32603
	CodeMethodNotFound int = -32601

	// Session lifecycle (-32000 to -32019)
	CodeStartupTimeout       int = -32000 // session did not become ready in time
	CodeHandshakeFailed      int = -32001 // connect or initialize failed
	CodeTransportUnavailable int = -32002 // session not ready, or transport inactive
	CodeModeViolation        int = -32003 // strict transport mode with inactive transport

	// Processes (-32020 to -32039)
	CodeProcessBindFailure int = -32020 // server process never opened its port
	CodeProcessFailed      int = -32021 // server process could not be spawned

	// Auth (-32100 to -32119)
	CodeAuthMismatch int = -32100 // client and server tokens disagree

	// Tools (-32300 to -32319)
	CodeToolCallError    int = -32300 // remote tool returned isError
	CodeOperationTimeout int = -32301 // caller deadline elapsed
	CodeUnknownTool      int = -32302

	// Upstream providers (-32650 to -32669)
	CodeRateLimited  int = -32650 // HTTP 429 from an upstream API
	CodeServerError  int = -32651 // HTTP 5xx from an upstream API
	CodeProviderFail int = -32652

	// Validation (-32750 to -32769)
	CodeValidationError  int = -32750
	CodeInvalidParameter int = -32752
	CodePathEscape       int = -32756 // path resolves outside the project root
)

// ErrorCodeInfo describes a registered code.
type ErrorCodeInfo struct {
	Code      int
	Name      string
	Category  Category
	Severity  Severity
	Retryable bool
}

var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", CategoryValidation, SeverityError, false},
	CodeInternalError:  {CodeInternalError, "InternalError", CategoryInternal, SeverityError, false},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", CategoryValidation, SeverityError, false},

	CodeStartupTimeout:       {CodeStartupTimeout, "StartupTimeout", CategoryTimeout, SeverityError, false},
	CodeHandshakeFailed:      {CodeHandshakeFailed, "HandshakeFailed", CategoryTransport, SeverityError, false},
	CodeTransportUnavailable: {CodeTransportUnavailable, "TransportUnavailable", CategoryTransport, SeverityWarning, false},
	CodeModeViolation:        {CodeModeViolation, "ModeViolation", CategoryTransport, SeverityCritical, false},

	CodeProcessBindFailure: {CodeProcessBindFailure, "ProcessBindFailure", CategoryTransport, SeverityCritical, false},
	CodeProcessFailed:      {CodeProcessFailed, "ProcessFailed", CategoryTransport, SeverityCritical, false},

	CodeAuthMismatch: {CodeAuthMismatch, "AuthMismatch", CategoryAuth, SeverityError, false},

	CodeToolCallError:    {CodeToolCallError, "ToolCallError", CategoryTool, SeverityError, false},
	CodeOperationTimeout: {CodeOperationTimeout, "OperationTimeout", CategoryTimeout, SeverityError, true},
	CodeUnknownTool:      {CodeUnknownTool, "UnknownTool", CategoryTool, SeverityError, false},

	CodeRateLimited:  {CodeRateLimited, "RateLimited", CategoryUpstream, SeverityWarning, true},
	CodeServerError:  {CodeServerError, "Server5xx", CategoryUpstream, SeverityError, true},
	CodeProviderFail: {CodeProviderFail, "ProviderFailure", CategoryProvider, SeverityError, false},

	CodeValidationError:  {CodeValidationError, "ValidationError", CategoryValidation, SeverityError, false},
	CodeInvalidParameter: {CodeInvalidParameter, "InvalidParameter", CategoryValidation, SeverityError, false},
	CodePathEscape:       {CodePathEscape, "PathEscape", CategoryValidation, SeverityError, false},
}

// GetErrorCodeInfo returns information about a code.
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the registered name, or "UnknownError".
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

func isRetryableCode(code int) bool {
	return errorCodeRegistry[code].Retryable
}
