package errors

// ERR is the numeric error code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN           ERR = 0
	ERR_INVALID_ARGUMENT  ERR = 1
	ERR_NOT_FOUND         ERR = 2
	ERR_PROCESSING        ERR = 3
	ERR_CONFIGURATION     ERR = 4
	ERR_CONTEXT_CANCELED  ERR = 5
	ERR_SERVICE_ERROR     ERR = 6
	ERR_STORAGE_ERROR     ERR = 7
	ERR_TRUNCATED         ERR = 10
	ERR_INVALID_ENCODING  ERR = 11
	ERR_TOO_LARGE         ERR = 12
	ERR_CHECKSUM_MISMATCH ERR = 13
	ERR_INSUFFICIENT_POW  ERR = 20
	ERR_DECRYPTION_FAILED ERR = 21
	ERR_SIGNATURE_INVALID ERR = 22
	ERR_NODE_PROTOCOL     ERR = 30
	ERR_APPLICATION       ERR = 31
)

var ERR_name = map[int32]string{
	0:  "ERR_UNKNOWN",
	1:  "ERR_INVALID_ARGUMENT",
	2:  "ERR_NOT_FOUND",
	3:  "ERR_PROCESSING",
	4:  "ERR_CONFIGURATION",
	5:  "ERR_CONTEXT_CANCELED",
	6:  "ERR_SERVICE_ERROR",
	7:  "ERR_STORAGE_ERROR",
	10: "ERR_TRUNCATED",
	11: "ERR_INVALID_ENCODING",
	12: "ERR_TOO_LARGE",
	13: "ERR_CHECKSUM_MISMATCH",
	20: "ERR_INSUFFICIENT_POW",
	21: "ERR_DECRYPTION_FAILED",
	22: "ERR_SIGNATURE_INVALID",
	30: "ERR_NODE_PROTOCOL",
	31: "ERR_APPLICATION",
}

func (e ERR) Enum() string {
	if name, ok := ERR_name[int32(e)]; ok {
		return name
	}

	return "ERR_UNKNOWN"
}
