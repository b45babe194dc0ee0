package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/tuannm99/pgsqlkit"
	"github.com/tuannm99/pgsqlkit/internal"
)

// history is the statements run in this and earlier sessions, kept one per
// line in a plain file.
type history struct {
	path    string
	limit   int
	entries []string
}

// openHistory loads the last limit entries of path. A missing file is an
// empty history.
func openHistory(path string, limit int) (*history, error) {
	h := &history{path: path, limit: limit}
	if path == "" {
		return h, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return h, nil
	}
	if err != nil {
		return h, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			h.entries = append(h.entries, line)
		}
	}
	h.trim()
	return h, nil
}

func (h *history) trim() {
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// historyLine is stmt flattened onto one line and terminated.
func historyLine(stmt string) string {
	line := strings.TrimSuffix(pgsqlkit.CompactStatement(stmt), ";")
	if line == "" {
		return ""
	}
	return line + ";"
}

// add records stmt as its historyLine. Running the same statement twice in a
// row records it once.
func (h *history) add(stmt string) error {
	line := historyLine(stmt)
	if line == "" {
		return nil
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return nil
	}
	h.entries = append(h.entries, line)
	h.trim()
	if h.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	_, err = f.WriteString(line + "\n")
	return multierr.Append(err, f.Close())
}

// write prints the last n entries numbered from the oldest one kept.
func (h *history) write(w io.Writer, n int) {
	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	start := len(h.entries) - n
	for i, line := range h.entries[start:] {
		fmt.Fprintf(w, "%5d  %s\n", start+i+1, line)
	}
}

// takeStatements moves every complete statement out of buf and leaves the
// unfinished tail behind.
func takeStatements(buf *strings.Builder) []string {
	stmts, rest := pgsqlkit.SplitStatements(buf.String())
	buf.Reset()
	buf.WriteString(strings.TrimSpace(rest))
	return stmts
}

func isMetaCommand(line string) bool {
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

// runStatement opens stmt and prints either its rows or its command status.
func runStatement(conn *pgsqlkit.Connection, stmt string) error {
	rs, err := conn.Open(stmt)
	if err != nil {
		return errors.New(conn.LastError())
	}
	defer func() { _ = rs.Close() }()

	cols, err := rs.Columns()
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		fmt.Println(conn.LastCmdStatus())
		return nil
	}
	return printRecordset(rs, cols)
}

func printRecordset(rs *pgsqlkit.Recordset, cols []pgsqlkit.Column) error {

	var rows [][]string
	rec, err := rs.MoveFirst()
	for ; err == nil && rec != nil; rec, err = rs.MoveNext() {
		out := make([]string, len(cols))
		for i := range cols {
			f, ferr := rec.FieldByIndex(i)
			if ferr != nil {
				return ferr
			}
			s, ferr := f.AsString()
			if ferr != nil {
				return ferr
			}
			if s.Valid {
				out[i] = s.V
			} else {
				out[i] = "NULL"
			}
		}
		rows = append(rows, out)
	}
	if err != nil {
		return err
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c.Name())
	}
	for _, row := range rows {
		for i, s := range row {
			widths[i] = max(widths[i], len(s))
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(padRight(values[i], widths[i]))
		}
		fmt.Println()
	}

	hdr := make([]string, len(cols))
	for i, c := range cols {
		hdr[i] = c.Name()
	}
	printRow(hdr)

	for i := range cols {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", widths[i]))
	}
	fmt.Println()

	for _, row := range rows {
		printRow(row)
	}
	fmt.Printf("(%d rows)\n", len(rows))
	return nil
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".pgsh_history"
	}
	return filepath.Join(home, ".pgsh_history")
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func newConnection(cfg *internal.PgsqlKitConfig) (*pgsqlkit.Connection, error) {
	conn := pgsqlkit.NewConnection()
	cc := cfg.Connection
	conn.Credentials = pgsqlkit.Credentials{
		Host:       cc.Host,
		Port:       cc.Port,
		DBName:     cc.DBName,
		User:       cc.User,
		Password:   cc.Password,
		SSLMode:    cc.SSLMode,
		Service:    cc.Service,
		KrbsrvName: cc.KrbsrvName,
		Options:    cc.Options,
	}
	conn.LogSQL = cc.LogSQL
	if cc.Encoding != "" {
		enc, err := pgsqlkit.LookupEncoding(cc.Encoding)
		if err != nil {
			return nil, err
		}
		conn.SetEncoding(enc)
	}
	return conn, nil
}

func main() {
	fs := pflag.NewFlagSet("pgsh", pflag.ExitOnError)
	var (
		cfgPath    = fs.String("config", "", "YAML config file")
		histPath   = fs.String("history", defaultHistoryPath(), "history file path")
		histMax    = fs.Int("history-max", 2000, "max history lines loaded into memory")
		oneShotSQL = fs.StringP("command", "c", "", "execute one SQL statement and exit")
	)
	fs.String("host", "", "server host")
	fs.String("port", "", "server port")
	fs.StringP("dbname", "d", "", "database name")
	fs.StringP("user", "U", "", "user name")
	fs.String("sslmode", "", "ssl mode (disable, prefer, require...)")
	fs.String("encoding", "", "text encoding for results (UTF8, LATIN1, MACROMAN...)")
	fs.Bool("log-sql", false, "keep an in-memory SQL log (see \\log)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	_ = fs.Parse(os.Args[1:])

	cfg, err := internal.LoadConfig(*cfgPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level)

	if pw := os.Getenv("PGPASSWORD"); pw != "" && cfg.Connection.Password == "" {
		cfg.Connection.Password = pw
	}

	conn, err := newConnection(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %s\n", conn.LastError())
		os.Exit(1)
	}

	// one-shot mode
	if strings.TrimSpace(*oneShotSQL) != "" {
		if err := runStatement(conn, *oneShotSQL); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	h, err := openHistory(*histPath, *histMax)
	if err != nil {
		slog.Warn("pgsh: reading history", "path", *histPath, "err", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pgsh> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.entries {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder

	fmt.Printf("connected to %s/%s\n", cfg.Connection.Host, cfg.Connection.DBName)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			// Ctrl+C clears current buffer
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("pgsh> ")
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \history               print history
  \log                   print the SQL log (needs --log-sql)
  \version               print the server version
  \reset                 reconnect
  \help                  show help

sql:
  end statement with ';'
  multiline is supported (shell waits until ';')`)
			case "\\history":
				h.write(os.Stdout, 50)
			case "\\log":
				fmt.Print(conn.SQLLog())
			case "\\version":
				v, err := conn.VersionString()
				if err != nil {
					fmt.Printf("error: %s\n", conn.LastError())
					continue
				}
				fmt.Println(v)
			case "\\reset":
				if err := conn.Reset(); err != nil {
					fmt.Printf("error: %s\n", conn.LastError())
				}
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		// newlines keep a -- comment from swallowing the next line
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		for _, stmt := range takeStatements(&buf) {
			if err := h.add(stmt); err != nil {
				slog.Warn("pgsh: writing history", "path", *histPath, "err", err)
			}
			_ = rl.SaveHistory(historyLine(stmt))

			if err := runStatement(conn, stmt); err != nil {
				fmt.Printf("error: %v\n", err)
			}
		}
		if buf.Len() > 0 {
			rl.SetPrompt("...> ")
		} else {
			rl.SetPrompt("pgsh> ")
		}
	}
}
