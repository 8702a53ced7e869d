package ws

import "github.com/rs/xid"

func newConnID() string {
	return xid.New().String()
}
