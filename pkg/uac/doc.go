// Package uac defines the boundary between the node supervisor and the
// underwater acoustic channel.
package uac

// The acoustic modem is a self-contained collaborator: it owns byte-level
// framing, checksums and its own command protocol, none of which appear
// here. This package only fixes the narrow contract the supervisor needs
// (Modem), the shape of a received broadcast (Message), and the short ASCII
// payloads this node produces and recognises on the channel.
//
// Producer: modem firmware (via a serial line driver)
// Consumer: node supervisor
