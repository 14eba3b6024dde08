// Command replay prints every frame of a recorded trace session in order,
// one line per frame, for quick inspection without a full analysis pass.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/anodyne74/doip-client/trace"
)

func main() {
	path := flag.String("session", "", "path to a trace session JSON file")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -session <path>")
		os.Exit(2)
	}

	session, err := trace.LoadSession(*path)
	if err != nil {
		log.Fatalf("replay: load session: %v", err)
	}

	for _, f := range session.Frames {
		fmt.Printf("%s %-3s %-20s conv=%-12s type=0x%04x len=%d\n",
			f.Timestamp.Format("15:04:05.000"), f.Direction, f.PayloadTypeName, f.ConversationName, f.PayloadType, len(f.Raw))
	}
}
