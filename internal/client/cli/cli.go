// Package cli is the interactive terminal front end: a readline loop that
// turns commands into API calls and keeps the session in a state.Store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/sakif/colab/internal/client"
	"github.com/sakif/colab/internal/client/state"
	"github.com/sakif/colab/internal/model"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// errExit ends Run without an error.
var errExit = errors.New("exit requested")

// lineReader is the part of *readline.Instance the loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// API is the part of *client.Client the commands use.
type API interface {
	Signup(ctx context.Context, req client.SignupRequest) (int64, error)
	Login(ctx context.Context, username, password string) (model.PublicUser, error)
	Current(ctx context.Context) (model.User, error)
	Profile(ctx context.Context) ([]model.Profile, error)
	List(ctx context.Context) ([]model.User, error)
	Rename(ctx context.Context, newName string) error
	Logout(ctx context.Context) error
	AddImage(ctx context.Context, imgURL string) (model.Image, error)
}

type CLI struct {
	rl    lineReader
	api   API
	store *state.Store
	out   io.Writer
}

// New wires the loop. The prompt follows the store: it shows the username
// while someone is logged in.
func New(rl lineReader, api API, store *state.Store, out io.Writer) *CLI {
	c := &CLI{rl: rl, api: api, store: store, out: out}
	store.Subscribe(func(st state.State) { rl.SetPrompt(prompt(st)) })
	rl.SetPrompt(prompt(store.State()))
	return c
}

func prompt(st state.State) string {
	if st.LoggedIn() {
		return st.User.Username + "@colab> "
	}
	return "colab> "
}

// Run reads and executes commands until exit or EOF.
func (c *CLI) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Co_Lab terminal. Type 'help' for commands.")
	for {
		line, err := c.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			fmt.Fprintln(c.out, "Use 'exit' to leave.")
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		err = c.Execute(ctx, strings.Fields(line))
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			c.printError(err)
		}
	}
}

// Execute runs one command. An empty line is a no-op.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "help":
		c.help()
		return nil
	case "exit", "quit":
		return errExit
	case "signup":
		return c.signup(ctx)
	case "login":
		return c.login(ctx, args[1:])
	}

	// Everything below needs a session.
	if !c.store.LoggedIn() {
		switch args[0] {
		case "whoami", "profile", "rename", "picture", "users", "logout":
			return errors.New("not logged in; use 'login' or 'signup'")
		}
	}

	switch args[0] {
	case "whoami":
		u := c.store.State().User
		fmt.Fprintf(c.out, "%s (%s %s), id %d\n", u.Username, u.FirstName, u.LastName, u.ID)
		return nil
	case "profile":
		return c.profile(ctx)
	case "rename":
		if len(args) != 2 {
			return errors.New("usage: rename <new-username>")
		}
		return c.rename(ctx, args[1])
	case "picture":
		if len(args) != 2 {
			return errors.New("usage: picture <image-url>")
		}
		return c.picture(ctx, args[1])
	case "users":
		return c.users(ctx)
	case "logout":
		return c.logout(ctx)
	default:
		return fmt.Errorf("unknown command %q; type 'help'", args[0])
	}
}

func (c *CLI) help() {
	fmt.Fprint(c.out, `Commands:
  signup               create an account and log in
  login [username]     log in
  whoami               show the logged-in user
  profile              show your profile from the server
  rename <new>         change your username
  picture <url>        set your profile picture
  users                list every user
  logout               log out
  exit                 leave
`)
}

func (c *CLI) signup(ctx context.Context) error {
	var req client.SignupRequest
	fields := []struct {
		label string
		dst   *string
	}{
		{"First name", &req.FirstName},
		{"Last name", &req.LastName},
		{"Username", &req.Username},
		{"Email", &req.Email},
		{"Confirm email", &req.EmailConfirm},
	}
	for _, f := range fields {
		v, err := c.ask(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	pw, err := c.askPassword()
	if err != nil {
		return err
	}
	req.Password = pw

	if _, err := c.api.Signup(ctx, req); err != nil {
		return err
	}
	return c.startSession(ctx, req.Username, req.Password)
}

func (c *CLI) login(ctx context.Context, args []string) error {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		var err error
		if username, err = c.ask("Username"); err != nil {
			return err
		}
	}

	pw, err := c.askPassword()
	if err != nil {
		return err
	}
	return c.startSession(ctx, username, pw)
}

// startSession logs in and dispatches Login, then fills in the picture from
// the profile. A profile failure leaves the session without a picture.
func (c *CLI) startSession(ctx context.Context, username, password string) error {
	pub, err := c.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	user := state.User{ID: pub.ID, FirstName: pub.FirstName, LastName: pub.LastName, Username: pub.Username}
	if rows, err := c.api.Profile(ctx); err == nil {
		user.PictureImg = latestPicture(rows)
	}
	c.store.Dispatch(state.Action{Kind: state.Login, User: user})

	fmt.Fprintf(c.out, "%s is logged in\n", pub.Username)
	return nil
}

func (c *CLI) profile(ctx context.Context) error {
	me, err := c.api.Current(ctx)
	if err != nil {
		return err
	}
	rows, err := c.api.Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s %s (@%s)\n", me.FirstName, me.LastName, me.Username)
	fmt.Fprintf(c.out, "email: %s\n", me.Email)
	bio := "-"
	if len(rows) > 0 && rows[0].Bio != "" {
		bio = rows[0].Bio
	}
	fmt.Fprintf(c.out, "bio: %s\n", bio)
	if pic := latestPicture(rows); pic != "" {
		fmt.Fprintf(c.out, "picture: %s\n", pic)
	}
	return nil
}

func (c *CLI) rename(ctx context.Context, newName string) error {
	if err := c.api.Rename(ctx, newName); err != nil {
		return err
	}
	user := c.store.State().User
	user.Username = newName
	c.store.Dispatch(state.Action{Kind: state.Update, User: user})

	fmt.Fprintf(c.out, "renamed to %s\n", newName)
	return nil
}

func (c *CLI) picture(ctx context.Context, imgURL string) error {
	img, err := c.api.AddImage(ctx, imgURL)
	if err != nil {
		return err
	}
	user := c.store.State().User
	user.PictureImg = img.URL
	c.store.Dispatch(state.Action{Kind: state.Update, User: user})

	fmt.Fprintln(c.out, "picture updated")
	return nil
}

func (c *CLI) users(ctx context.Context) error {
	users, err := c.api.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(c.out, "%4d  %-20s %s %s\n", u.ID, u.Username, u.FirstName, u.LastName)
	}
	return nil
}

// logout clears the local session even when the server call fails; the
// token is useless to us either way.
func (c *CLI) logout(ctx context.Context) error {
	err := c.api.Logout(ctx)
	c.store.Reset()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "log out success")
	return nil
}

// ask reads one field with label as the prompt, then restores the prompt.
func (c *CLI) ask(label string) (string, error) {
	c.rl.SetPrompt(label + ": ")
	defer c.rl.SetPrompt(prompt(c.store.State()))

	line, err := c.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *CLI) askPassword() (string, error) {
	fmt.Fprint(c.out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(c.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

func (c *CLI) printError(err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(c.out, "error: %s\n", apiErr.Message)
		return
	}
	fmt.Fprintf(c.out, "error: %v\n", err)
}

// latestPicture returns the last non-empty img_url; rows come oldest first.
func latestPicture(rows []model.Profile) string {
	var pic string
	for _, r := range rows {
		if r.ImgURL != "" {
			pic = r.ImgURL
		}
	}
	return pic
}
