package protocol

// n2e opcodes (CPU -> ESP). The numbering follows the original firmware's
// enum order rather than spec.md §4.4's prose table order: the original
// reserves four GET_RND_* slots and one SEND_MESSAGE_TO_GAME slot that
// spec.md's table omits but spec.md §8's concrete byte examples (FILE_OPEN
// = 0x0D, FILE_SET_CUR = 0x11, FILE_READ = 0x12, FILE_WRITE = 0x13) only
// line up if those gaps are preserved. See DESIGN.md.
const (
	opGetEspStatus byte = iota
	opDebugLog
	opClearBuffers
	opGetWifiStatus
	opGetRndByte      // reserved, unimplemented
	opGetRndByteRange // reserved, unimplemented
	opGetRndWord      // reserved, unimplemented
	opGetRndWordRange // reserved, unimplemented
	opGetServerStatus
	opConnectToServer
	opDisconnectFromServer
	opSendMessageToServer
	opSendMessageToGame // reserved, unimplemented
	opFileOpen
	opFileClose
	opFileExists
	opFileDelete
	opFileSetCur
	opFileRead
	opFileWrite
	opFileAppend
	opGetFileList
)

// e2n opcodes (ESP -> CPU), numbered sequentially in declaration order.
const (
	eReady byte = iota
	eFileExists
	eFileList
	eFileData
	eWifiStatus
	eServerStatus
	eRndByte // reserved, never emitted
	eRndWord // reserved, never emitted
	eMessageFromServer
)
