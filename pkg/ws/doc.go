// Package ws is a small WebSocket server runtime built on RFC 6455 framing:
//   - Channel turns the raw byte stream of one socket into messages, answers
//     pings and handles the closing handshake
//   - Server upgrades HTTP requests, tracks live channels by remote address and
//     broadcasts to all of them
//   - Client is a gorilla/websocket peer for talking to a Server
//
// Binary messages usually carry values encoded with package pack.
//
// # Server
//
//	server := ws.NewServer(ws.DefaultServerConfig())
//	server.Subscribe(ws.Handlers{
//	    Message: func(c *ws.Channel, msg ws.Message) {
//	        _ = c.Send(msg)
//	    },
//	})
//	http.Handle("/", server)
//
// or, with the server owning its listener:
//
//	go server.ListenAndServe(":1338")
//	defer server.Close(ctx)
//
// # Client
//
//	client := ws.NewClient(ws.DefaultClientConfig("ws://localhost:1338/"))
//	client.Connect(ctx)
//	client.WriteValues(pack.String("hello"), pack.Int(42))
//	values, err := client.ReadValues()
//
// # Framing
//
// Outbound messages are split into frames of at most MaxSize payload bytes:
// the first frame carries the message opcode, the rest are continuations and
// only the last has fin set. Frames sent by a server are not masked. Inbound
// frames larger than MaxSize close the channel with 1009, other protocol
// violations close it with 1002.
//
// # Observations
//
// Each Channel and the Server keep a list of Handlers. Observations are
// delivered in order on the goroutine that produced them:
//
//	Open               server only, after the 101 response
//	Message            a complete text or binary message
//	IncompleteMessage  a fragmented message abandoned by a new one
//	Ping, Pong         control frames with their payload
//	Close              once per channel, with the peer's code if any
//	Error              protocol violations and dropped frames
package ws
