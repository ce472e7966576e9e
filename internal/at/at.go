package at

const (
	CRLF = "\r\n"

	// Final result codes terminating a command exchange
	OK       = "OK"
	ERROR    = "ERROR"
	CmeError = "+CME ERROR:"
	CmsError = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcRing       = "RING"
	UrcCallerID   = "+CLIP:"
	UrcNoCarrier  = "NO CARRIER"
	UrcBusy       = "BUSY"
	UrcNoAnswer   = "NO ANSWER"
	UrcNoDialtone = "NO DIALTONE"
	UrcCallStatus = "+CLCC:"
	UrcSignal     = "+CSQ:"

	// Commands
	CmdAt         = "AT"
	CmdAnswer     = "ATA"
	CmdHangup     = "ATH"
	CmdSignal     = "AT+CSQ"
	CmdCallStatus = "AT+CLCC"
)

// Dial builds a voice dial command. The trailing semicolon selects voice mode;
// without it the modem would attempt a data call.
func Dial(number string) string {
	return "ATD" + number + ";"
}

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK, ERROR, +CME ERROR
	TypeURC                       // Asynchronous notifications
	TypeData                      // Intermediate command output (+CSQ: ...)
)
