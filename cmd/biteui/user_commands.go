package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jrsteele09/go-biteui-client/management"
)

func filterFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra,
		&cli.StringSliceFlag{Name: "status", Usage: "status names or numbers"},
		&cli.StringFlag{Name: "search"},
		&cli.StringFlag{Name: "sort-by"},
		&cli.StringFlag{Name: "sort-order", Usage: "asc or desc"},
	)
}

func (a *app) usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "administer user accounts",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list users a page at a time",
				Flags:  filterFlags(&cli.IntFlag{Name: "page", Value: 1}, &cli.IntFlag{Name: "size", Value: 20}),
				Action: a.listUsers,
			},
			{
				Name:      "get",
				Usage:     "show one user",
				ArgsUsage: "<id>",
				Action:    a.getUser,
			},
			{
				Name:  "create",
				Usage: "create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "full-name", Required: true},
					&cli.StringFlag{Name: "status", Value: "active"},
				},
				Action: a.createUser,
			},
			{
				Name:      "update",
				Usage:     "change the given fields of a user",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "password"},
					&cli.StringFlag{Name: "full-name"},
					&cli.StringFlag{Name: "status"},
				},
				Action: a.updateUser,
			},
			{
				Name:      "delete",
				Usage:     "delete a user",
				ArgsUsage: "<id>",
				Action: func(cCtx *cli.Context) error {
					id := cCtx.Args().First()
					if err := a.users.Delete(cCtx.Context, id); err != nil {
						return err
					}
					fmt.Fprintln(cCtx.App.Writer, "Deleted", id)
					return nil
				},
			},
			{
				Name:      "import",
				Usage:     "create or update users from a JSON array",
				ArgsUsage: "<file|->",
				Action:    a.importUsers,
			},
			{
				Name:   "export",
				Usage:  "write matching users as JSON",
				Flags:  filterFlags(&cli.StringFlag{Name: "out", Aliases: []string{"o"}}),
				Action: a.exportUsers,
			},
		},
	}
}

func filterFromFlags(cCtx *cli.Context) (management.Filter, error) {
	f := management.Filter{
		Search:    cCtx.String("search"),
		SortBy:    cCtx.String("sort-by"),
		SortOrder: management.SortOrder(cCtx.String("sort-order")),
	}
	for _, v := range cCtx.StringSlice("status") {
		s, err := management.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, s)
	}
	return f, nil
}

func (a *app) listUsers(cCtx *cli.Context) error {
	f, err := filterFromFlags(cCtx)
	if err != nil {
		return err
	}
	list, err := a.users.List(cCtx.Context, management.ListInput{
		Page:   cCtx.Int("page"),
		Size:   cCtx.Int("size"),
		Filter: f,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cCtx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tSTATUS\tUPDATED")
	for _, u := range list.Users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, a.paint.Status(u.Status.String()), updated(u.UpdatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "page %d, %d of %d users\n", list.Page, len(list.Users), list.Total)
	return nil
}

func updated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func (a *app) getUser(cCtx *cli.Context) error {
	u, err := a.users.Get(cCtx.Context, cCtx.Args().First())
	if err != nil {
		return err
	}
	w := cCtx.App.Writer
	fmt.Fprintf(w, "%s %s\n", u.FullName, u.Email)
	fmt.Fprintf(w, "  id:      %s\n", u.ID)
	fmt.Fprintf(w, "  status:  %s\n", a.paint.Status(u.Status.String()))
	fmt.Fprintf(w, "  updated: %s\n", updated(u.UpdatedAt))
	return nil
}

func (a *app) createUser(cCtx *cli.Context) error {
	status, err := management.ParseStatus(cCtx.String("status"))
	if err != nil {
		return err
	}
	err = a.users.Create(cCtx.Context, management.CreateUserInput{
		Email:    cCtx.String("email"),
		Password: cCtx.String("password"),
		FullName: cCtx.String("full-name"),
		Status:   status,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, "Created", cCtx.String("email"))
	return nil
}

func (a *app) updateUser(cCtx *cli.Context) error {
	in := management.UpdateUserInput{ID: cCtx.Args().First()}
	set := func(flag string) *string {
		if !cCtx.IsSet(flag) {
			return nil
		}
		v := cCtx.String(flag)
		return &v
	}
	in.Email, in.Password, in.FullName = set("email"), set("password"), set("full-name")
	if cCtx.IsSet("status") {
		s, err := management.ParseStatus(cCtx.String("status"))
		if err != nil {
			return err
		}
		in.Status = &s
	}
	if err := a.users.Update(cCtx.Context, in); err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, "Updated", in.ID)
	return nil
}

func (a *app) importUsers(cCtx *cli.Context) error {
	src := cCtx.Args().First()
	if src == "" {
		return errors.New("import needs a file, or - for stdin")
	}
	var r io.Reader = os.Stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	var rows []management.ImportUser
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return fmt.Errorf("decoding %s: %w", src, err)
	}
	res, err := a.users.Import(cCtx.Context, rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "Imported %d users: %d created, %d updated\n", len(rows), res.Created, res.Updated)
	return nil
}

func (a *app) exportUsers(cCtx *cli.Context) error {
	f, err := filterFromFlags(cCtx)
	if err != nil {
		return err
	}
	users, err := a.users.Export(cCtx.Context, f)
	if err != nil {
		return err
	}

	w := cCtx.App.Writer
	if out := cCtx.String("out"); out != "" {
		file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(users)
}
