package repositories

import "fmt"

// Key layout:
//
//	room:{code}            -> CBOR room record
//	msg:{code}:{%019d id}  -> CBOR message record
//	seq:msg                -> badger sequence backing message ids
//
// The zero-padded id keeps Badger's lexicographic iteration equal to
// persist order, so history reads never need a sort.
const (
	roomPrefix = "room:"
	msgSeqKey  = "seq:msg"
)

func roomKey(code string) []byte {
	return []byte(roomPrefix + code)
}

func messagePrefix(code string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", code))
}

func messageKey(code string, id int64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", code, id))
}
