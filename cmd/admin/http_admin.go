package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"futdrill.ai/internal/observerproto"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state"
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

// watchCmd subscribes as a passive observer and prints STATUS messages
// until the server closes the connection.
func watchCmd(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	frames := fs.Bool("frames", false, "also print a line per FRAME")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/observer/ws"
	u = "ws" + strings.TrimPrefix(u, "http")

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}
	if err := conn.WriteJSON(sub); err != nil {
		fmt.Fprintln(os.Stderr, "subscribe:", err)
		os.Exit(1)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			continue
		}
		switch base.Type {
		case observerproto.TypeStatus:
			var st observerproto.StatusMsg
			if err := json.Unmarshal(raw, &st); err != nil {
				continue
			}
			fmt.Printf("[%d/%d] %-14s %-9s t=%6.2fs kicks=%d total=%7.2fs gen=%d tick=%d",
				st.Index+1, st.Count, st.Scenario, st.State, st.Elapsed, st.Kicks, st.TotalElapsed, st.Generation, st.Tick)
			if st.Reason != "" {
				fmt.Printf(" reason=%q", st.Reason)
			}
			if st.Finished {
				fmt.Printf(" FINISHED")
			}
			fmt.Println()
		case observerproto.TypeFrame:
			if !*frames {
				continue
			}
			var fr observerproto.FrameMsg
			if err := json.Unmarshal(raw, &fr); err != nil {
				continue
			}
			fmt.Printf("frame gen=%d tick=%d bodies=%d\n", fr.Generation, fr.Tick, len(fr.Bodies))
		}
	}
}
