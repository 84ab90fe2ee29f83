package core_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"gitlab.com/zephyrtronium/tmi"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/tilde/addon/core"
	"github.com/zephyrtronium/tilde/addon/text"
	"github.com/zephyrtronium/tilde/audit"
	"github.com/zephyrtronium/tilde/command"
	"github.com/zephyrtronium/tilde/message"
	"github.com/zephyrtronium/tilde/privilege"
	"github.com/zephyrtronium/tilde/userhash"
)

type testConn struct {
	levels map[string]command.Level
}

func (c *testConn) Name() string { return "test" }

func (c *testConn) Level(ctx context.Context, msg *message.Received) (command.Level, error) {
	if l, ok := c.levels[msg.Sender]; ok {
		return l, nil
	}
	return command.Default, nil
}

func (c *testConn) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	return nil
}

// fun is an addon that isn't enabled by default.
type fun struct{}

func (fun) ID() string   { return "fun" }
func (fun) Name() string { return "Fun" }

func (f fun) Start(ctx context.Context, bot *command.Bot) error {
	return bot.AddCommand(&command.Command{
		Trigger: "jump",
		Group:   f,
		Fn: func(ctx context.Context, bot *command.Bot, in *command.Input) (*command.Result, error) {
			return command.Text("boing"), nil
		},
	})
}

func (fun) Stop(ctx context.Context) error { return nil }

var dbcount atomic.Uint64

var key = []byte("madoka")

func testBot(t *testing.T) *command.Bot {
	t.Helper()
	ctx := context.Background()
	k := dbcount.Add(1)
	db, err := sqlitex.NewPool(fmt.Sprintf("file:core-%d.db?mode=memory&cache=shared", k), sqlitex.PoolOptions{Flags: sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenMemory | sqlite.OpenSharedCache | sqlite.OpenURI, PoolSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := privilege.Init(ctx, db); err != nil {
		t.Fatal(err)
	}
	if err := audit.Init(ctx, db); err != nil {
		t.Fatal(err)
	}
	grants, err := privilege.Open(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	log, err := audit.Open(ctx, db, userhash.New(key))
	if err != nil {
		t.Fatal(err)
	}
	bot := command.New(command.Config{
		Grants:   grants,
		Audit:    log,
		Owners:   []string{"test:zeph"},
		Always:   []string{"core"},
		Defaults: []string{"text"},
	})
	bot.Attach(&testConn{levels: map[string]command.Level{
		"seika":  command.Overlord,
		"nijika": command.Admin,
	}})
	bot.Install(core.New(grants, log), text.New(), fun{})
	if err := bot.Reload(ctx); err != nil {
		t.Fatalf("couldn't start addons: %v", err)
	}
	return bot
}

func eval(t *testing.T, bot *command.Bot, sender, server, in string) (*command.Result, error) {
	t.Helper()
	m := &message.Received{
		ID:       "1",
		Platform: "test",
		Server:   server,
		Sender:   sender,
		Text:     in,
	}
	return bot.Evaluate(context.Background(), m)
}

// step is one message in a conversation with the bot.
type step struct {
	sender string
	server string
	in     string
	// want is the expected text, or a prefix of it ending in "...".
	want string
	// err is a pointer to the expected error type.
	err any
}

func run(t *testing.T, bot *command.Bot, steps []step) {
	t.Helper()
	for i, s := range steps {
		r, err := eval(t, bot, s.sender, s.server, s.in)
		if s.err != nil {
			if !errors.As(err, s.err) {
				t.Errorf("step %d %q: wrong error: want %T, got %v", i, s.in, s.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("step %d %q: couldn't evaluate: %v", i, s.in, err)
			continue
		}
		got := r.Text()
		if p, ok := strings.CutSuffix(s.want, "..."); ok {
			if !strings.HasPrefix(got, p) {
				t.Errorf("step %d %q: wrong text: want prefix %q, got %q", i, s.in, p, got)
			}
			continue
		}
		if got != s.want {
			t.Errorf("step %d %q: wrong text: want %q, got %q", i, s.in, s.want, got)
		}
	}
}

func TestHelp(t *testing.T) {
	bot := testBot(t)
	run(t, bot, []step{
		{sender: "bocchi", server: "kessoku", in: "~help say", want: "~say: Repeat text."},
		{sender: "bocchi", server: "kessoku", in: "~help ~flip", want: "~flip: Reverse text."},
		{sender: "zeph", server: "kessoku", in: "~help reload", want: "~reload: Restart all addons. (superuser)"},
		{sender: "seika", server: "kessoku", in: "~help grant", want: "~grant: Grant a level to a user: grant <user> <disallowed|default|trusted|admin|overlord|superuser|none> (overlord)"},
		{sender: "bocchi", server: "kessoku", in: "~help jump", err: new(*command.GroupNotEnabledError)},
		{sender: "bocchi", server: "kessoku", in: "~help nothing", err: new(*command.UnknownCommandError)},
	})
	r, err := eval(t, bot, "bocchi", "kessoku", "~help")
	if err != nil {
		t.Fatalf("couldn't list commands: %v", err)
	}
	list := r.Text()
	for _, c := range []string{"~help", "~say", "~level", "~private"} {
		if !strings.Contains(list, c+",") {
			t.Errorf("%s missing from list %q", c, list)
		}
	}
	for _, c := range []string{"~reload", "~jump", "~grant", "~enable-addon"} {
		if strings.Contains(list, c) {
			t.Errorf("%s in list %q", c, list)
		}
	}
}

func TestAddons(t *testing.T) {
	bot := testBot(t)
	run(t, bot, []step{
		{sender: "bocchi", server: "kessoku", in: "~addons", want: "Core (core): always on, Text (text): enabled, Fun (fun): disabled"},
		{sender: "bocchi", server: "kessoku", in: "~jump", err: new(*command.GroupNotEnabledError)},
		{sender: "bocchi", server: "kessoku", in: "~enable-addon fun", err: new(*command.PermissionError)},
		{sender: "nijika", server: "", in: "~enable-addon fun", err: new(*command.ServerOnlyError)},
		{sender: "nijika", server: "kessoku", in: "~enable-addon nothing", err: new(*command.CommandError)},
		{sender: "nijika", server: "kessoku", in: "~enable-addon fun", want: "Enabled fun."},
		{sender: "nijika", server: "kessoku", in: "~enable-addon fun", err: new(*command.CommandError)},
		{sender: "bocchi", server: "kessoku", in: "~jump", want: "boing"},
		{sender: "bocchi", server: "starry", in: "~jump", err: new(*command.GroupNotEnabledError)},
		{sender: "nijika", server: "kessoku", in: "~disable-addon text", want: "Disabled text."},
		{sender: "nijika", server: "kessoku", in: "~disable-addon text", err: new(*command.CommandError)},
		{sender: "nijika", server: "kessoku", in: "~disable-addon core", err: new(*command.CommandError)},
		{sender: "bocchi", server: "kessoku", in: "~say hi", err: new(*command.GroupNotEnabledError)},
		{sender: "bocchi", server: "kessoku", in: "~addons", want: "Core (core): always on, Text (text): disabled, Fun (fun): enabled"},
	})
}

func TestPrefix(t *testing.T) {
	bot := testBot(t)
	run(t, bot, []step{
		{sender: "bocchi", server: "kessoku", in: "~prefix", want: "The command prefix here is ~"},
		{sender: "bocchi", server: "kessoku", in: "~prefix !", err: new(*command.PermissionError)},
		{sender: "nijika", server: "", in: "~prefix !", err: new(*command.ServerOnlyError)},
		{sender: "nijika", server: "kessoku", in: "~prefix toolongprefix", err: new(*command.CommandError)},
		{sender: "nijika", server: "kessoku", in: "~prefix !", want: "The command prefix is now !"},
		{sender: "bocchi", server: "kessoku", in: "!say hi", want: "hi"},
		{sender: "bocchi", server: "kessoku", in: "~say hi", want: "~say hi"},
		{sender: "bocchi", server: "starry", in: "~say hi", want: "hi"},
	})
}

func TestGrant(t *testing.T) {
	bot := testBot(t)
	run(t, bot, []step{
		{sender: "kita", server: "kessoku", in: "~level", want: "Your level here is default."},
		{sender: "zeph", server: "kessoku", in: "~level", want: "Your level here is superuser."},
		{sender: "kita", server: "kessoku", in: "~level @kita", want: "@kita has no granted level here."},
		{sender: "nijika", server: "kessoku", in: "~grant @kita trusted", err: new(*command.PermissionError)},
		{sender: "seika", server: "kessoku", in: "~grant @kita superuser", err: new(*command.PermissionError)},
		{sender: "seika", server: "kessoku", in: "~grant @kita god", err: new(*command.CommandError)},
		{sender: "seika", server: "kessoku", in: "~grant @kita", err: new(*command.CommandError)},
		{sender: "seika", server: "kessoku", in: "~grant @kita admin", want: "Granted admin to @kita."},
		{sender: "kita", server: "kessoku", in: "~level", want: "Your level here is admin."},
		{sender: "kita", server: "starry", in: "~level", want: "Your level here is default."},
		{sender: "bocchi", server: "kessoku", in: "~level <@kita>", want: "<@kita> has been granted admin here."},
		{sender: "kita", server: "kessoku", in: "~enable-addon fun", want: "Enabled fun."},
		{sender: "seika", server: "kessoku", in: "~grant kita none", want: "Removed the level granted to kita."},
		{sender: "kita", server: "kessoku", in: "~disable-addon fun", err: new(*command.PermissionError)},
		{sender: "seika", server: "kessoku", in: "~grant ryou disallowed", want: "Granted disallowed to ryou."},
		{sender: "ryou", server: "kessoku", in: "~say hi", err: new(*command.PermissionError)},
	})
}

// tmiConn reports levels the way Twitch does.
type tmiConn struct{}

func (tmiConn) Name() string { return "tmi" }

func (tmiConn) Level(ctx context.Context, msg *message.Received) (command.Level, error) {
	if msg.IsOwner {
		return command.Overlord, nil
	}
	return command.Default, nil
}

func (tmiConn) Send(ctx context.Context, msg *message.Received, r *command.Result) error {
	return nil
}

func privmsg(t *testing.T, nick, id, text string) *message.Received {
	t.Helper()
	line := fmt.Sprintf("@display-name=%s;id=1;mod=0;tmi-sent-ts=1;user-id=%s :%s!%s@%s.tmi.twitch.tv PRIVMSG #kessoku :%s\r\n", strings.ToUpper(nick), id, nick, nick, nick, text)
	m, err := tmi.Parse(strings.NewReader(line))
	if err != nil && err != io.EOF {
		t.Fatalf("couldn't parse %q: %v", line, err)
	}
	return message.FromTMI(m)
}

func TestGrantTMI(t *testing.T) {
	ctx := context.Background()
	bot := testBot(t)
	bot.Attach(tmiConn{})
	r, err := bot.Evaluate(ctx, privmsg(t, "kessoku", "100", "~grant @Bocchi admin"))
	if err != nil {
		t.Fatalf("couldn't grant: %v", err)
	}
	if got, want := r.Text(), "Granted admin to @Bocchi."; got != want {
		t.Errorf("wrong grant reply: want %q, got %q", want, got)
	}
	l, err := bot.Level(ctx, privmsg(t, "bocchi", "200", "hi"))
	if err != nil {
		t.Fatal(err)
	}
	if l != command.Admin {
		t.Errorf("grant didn't apply: want admin, got %v", l)
	}
	r, err = bot.Evaluate(ctx, privmsg(t, "ryou", "300", "~level @bocchi"))
	if err != nil {
		t.Fatalf("couldn't get level: %v", err)
	}
	if got, want := r.Text(), "@bocchi has been granted admin here."; got != want {
		t.Errorf("wrong level reply: want %q, got %q", want, got)
	}
	r, err = bot.Evaluate(ctx, privmsg(t, "bocchi", "200", "~level"))
	if err != nil {
		t.Fatalf("couldn't get own level: %v", err)
	}
	if got, want := r.Text(), "Your level here is admin."; got != want {
		t.Errorf("wrong own level: want %q, got %q", want, got)
	}
}

func TestReload(t *testing.T) {
	bot := testBot(t)
	run(t, bot, []step{
		{sender: "nijika", server: "kessoku", in: "~reload", err: new(*command.PermissionError)},
		{sender: "zeph", server: "kessoku", in: "~reload", want: "Reloaded ..."},
		{sender: "bocchi", server: "kessoku", in: "~say still here", want: "still here"},
	})
}

func TestPrivate(t *testing.T) {
	bot := testBot(t)
	r, err := eval(t, bot, "bocchi", "kessoku", "~private ~flip olleh")
	if err != nil {
		t.Fatalf("couldn't evaluate: %v", err)
	}
	if got, want := r.Text(), "hello"; got != want {
		t.Errorf("wrong text: want %q, got %q", want, got)
	}
	if !r.Private {
		t.Errorf("result isn't private")
	}
	r, err = eval(t, bot, "bocchi", "kessoku", "~say ~private psst")
	if err != nil {
		t.Fatalf("couldn't evaluate: %v", err)
	}
	if !r.Private {
		t.Errorf("nested private result isn't private")
	}
}

func TestRecent(t *testing.T) {
	bot := testBot(t)
	hr := userhash.New(key)
	hash := func(user string) string {
		return hr.Hash(new(userhash.Hash), user, "test:kessoku").String()[:7]
	}
	want := fmt.Sprintf("text.flip by %s 0s ago; text.say by %s 0s ago", hash("test:ryou"), hash("test:bocchi"))
	run(t, bot, []step{
		{sender: "nijika", server: "kessoku", in: "~recent", want: "No commands have been used here."},
		{sender: "bocchi", server: "kessoku", in: "~say a", want: "a"},
		{sender: "bocchi", server: "starry", in: "~say b", want: "b"},
		{sender: "ryou", server: "kessoku", in: "~flip c", want: "c"},
		{sender: "bocchi", server: "kessoku", in: "~recent", err: new(*command.PermissionError)},
		{sender: "nijika", server: "kessoku", in: "~recent 2", want: want},
		{sender: "nijika", server: "kessoku", in: "~recent 50", err: new(*command.CommandError)},
	})
}
