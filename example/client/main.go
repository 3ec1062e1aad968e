// Command client walks through a mail-drop session: log in, send a message,
// list and read the mailbox. Useful for poking at a running server.
//
//	go run ./example/client -addr localhost:4025 -user alice -pass secret
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
)

func main() {
	addr := flag.String("addr", "localhost:4025", "server address")
	user := flag.String("user", "alice", "username")
	pass := flag.String("pass", "secret", "password")
	to := flag.String("to", "", "receiver (defaults to the logged-in user)")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	receiver := *to
	if receiver == "" {
		receiver = *user
	}

	send(conn, fmt.Sprintf("LOGIN %s %s\n", *user, *pass))
	expect(reader, "LOGIN")

	send(conn, fmt.Sprintf("SEND %s Hello from the example client\nJust checking in.\n.\n", receiver))
	expect(reader, "SEND")

	send(conn, "LIST\n")
	count := expect(reader, "LIST")
	for i := 0; i < count; i++ {
		line, _ := reader.ReadString('\n')
		fmt.Printf("  %s", line)
	}

	send(conn, "QUIT\n")
}

func send(conn net.Conn, request string) {
	if _, err := fmt.Fprint(conn, request); err != nil {
		log.Fatalf("send: %v", err)
	}
}

// expect reads one reply line and logs it. For LIST it returns the entry
// count; any ERR reply aborts the run.
func expect(reader *bufio.Reader, command string) int {
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("%s: read reply: %v", command, err)
	}
	line = strings.TrimSpace(line)

	switch {
	case line == "OK":
		fmt.Printf("%s: OK\n", command)
	case line == "ERR":
		// Reasons, when present, follow on the next line; stop here rather
		// than guess whether one is coming.
		log.Fatalf("%s: ERR", command)
	default:
		var count int
		if _, err := fmt.Sscanf(line, "%d", &count); err == nil {
			fmt.Printf("%s: %d message(s)\n", command, count)
			return count
		}
		fmt.Printf("%s: %s\n", command, line)
	}
	return 0
}
