package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey derives the Sec-WebSocket-Accept token for a client key.
func AcceptKey(secKey string) string {
	sum := sha1.Sum([]byte(secKey + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func checkUpgradeRequest(r *http.Request) error {
	switch {
	case r.Method != http.MethodGet:
		return fmt.Errorf("%w: method %s", ErrBadHandshake, r.Method)
	case !r.ProtoAtLeast(1, 1):
		return fmt.Errorf("%w: protocol %s", ErrBadHandshake, r.Proto)
	case !headerHasToken(r.Header, "Upgrade", "websocket"):
		return fmt.Errorf("%w: missing Upgrade: websocket", ErrBadHandshake)
	case !headerHasToken(r.Header, "Connection", "upgrade"):
		return fmt.Errorf("%w: missing Connection: Upgrade", ErrBadHandshake)
	case r.Header.Get("Sec-WebSocket-Key") == "":
		return fmt.Errorf("%w: missing Sec-WebSocket-Key", ErrBadHandshake)
	}

	return nil
}

// headerHasToken reports whether any comma-separated value of the header
// equals token, ignoring case.
func headerHasToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for part := range strings.SplitSeq(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}

	return false
}

func upgradeResponse(acceptKey string) []byte {
	var sb strings.Builder

	sb.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	sb.WriteString("Upgrade: websocket\r\n")
	sb.WriteString("Connection: Upgrade\r\n")
	sb.WriteString("Sec-WebSocket-Accept: " + acceptKey + "\r\n")
	sb.WriteString("\r\n")

	return []byte(sb.String())
}
