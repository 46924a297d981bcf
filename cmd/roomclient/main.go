package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"broadcast-room/internal/client"
	"broadcast-room/internal/protocol"
)

type stdLogger struct{}

func (stdLogger) Debug(msg string, fields map[string]any) {}
func (stdLogger) Info(msg string, fields map[string]any)  { log.Printf("info: %s %v", msg, fields) }
func (stdLogger) Warn(msg string, fields map[string]any)  { log.Printf("warn: %s %v", msg, fields) }
func (stdLogger) Error(msg string, fields map[string]any) { log.Printf("error: %s %v", msg, fields) }

func main() {
	url := flag.String("url", "ws://localhost:8083/ws", "room websocket url")
	userID := flag.String("user", "", "user id")
	userName := flag.String("name", "", "display name")
	role := flag.String("role", "", "optional role")
	uploadURL := flag.String("upload", "", "image upload endpoint")
	flag.Parse()

	cfg := client.DefaultConfig()
	cfg.URL = *url
	cfg.UserID = *userID
	cfg.UserName = *userName
	cfg.Role = *role
	cfg.UploadURL = *uploadURL

	c := client.NewClient(cfg)
	c.SetLogger(stdLogger{})
	render(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer c.Close()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, c, line); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, c *client.Client, line string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	var err error
	switch cmd {
	case "":
		return false
	case "/quit":
		return true
	case "/leave":
		err = c.Leave(ctx)
	case "/typing":
		err = c.Keystroke(ctx)
	case "/edit":
		id, content, _ := strings.Cut(rest, " ")
		err = c.Edit(ctx, id, content)
	case "/delete":
		err = c.Delete(ctx, strings.TrimSpace(rest))
	case "/image":
		path, caption, _ := strings.Cut(rest, " ")
		err = sendImage(ctx, c, path, caption)
	default:
		err = c.Send(ctx, strings.TrimSpace(line))
	}
	if err != nil {
		fmt.Printf("! %v\n", err)
	}
	return false
}

func sendImage(ctx context.Context, c *client.Client, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.SendImage(ctx, caption, filepath.Base(path), f)
}

func render(c *client.Client) {
	c.OnStateChange(func(ev client.StateEvent) {
		fmt.Printf("* %s -> %s\n", ev.OldState, ev.NewState)
	})
	c.OnInitialMessages(func(msgs []client.Message) {
		for _, m := range msgs {
			printMessage(m)
		}
	})
	c.OnOnlineUsers(func(u protocol.OnlineUsers) {
		fmt.Printf("* %d online\n", u.Count)
	})
	c.OnUserJoined(func(ev protocol.UserJoined) {
		fmt.Printf("* %s joined\n", ev.UserName)
	})
	c.OnUserLeft(func(ev protocol.UserLeft) {
		fmt.Printf("* %s left\n", ev.UserName)
	})
	c.OnNewMessage(printMessage)
	c.OnMessageEdited(func(m client.Message) {
		fmt.Printf("~ ")
		printMessage(m)
	})
	c.OnMessageDeleted(func(ev protocol.MessageDeleted) {
		fmt.Printf("* message %s deleted\n", ev.MessageID)
	})
	c.OnUserTyping(func(ev protocol.UserTyping) {
		fmt.Printf("* %s is typing\n", ev.UserName)
	})
	c.OnUserStoppedTyping(func(ev protocol.UserStoppedTyping) {
		fmt.Printf("* %s stopped typing\n", ev.UserName)
	})
	c.OnError(func(err error) {
		fmt.Printf("! %v\n", err)
	})
}

func printMessage(m client.Message) {
	line := m.Content
	if m.HasImage() {
		line = strings.TrimSpace(line + " [" + m.ImageURL + "]")
	}
	fmt.Printf("[%s] %s %s: %s\n", m.Timestamp.Format("15:04:05"), m.ID, m.UserName, line)
}
