// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Spotify user ID the command acts for",
	}
}

// setupCommand initializes the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SetupDatabase,
	}
}

// serveCommand runs the HTTP server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the Cadence HTTP server",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// authCommand handles the Spotify authorization flow from the terminal.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify using OAuth2 in the browser",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show stored credential state for a user",
				Flags:  []cli.Flag{configFlag(), userFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Discard stored credentials for a user",
				Flags:  []cli.Flag{configFlag(), userFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// libraryCommand manages the reading shelf.
func libraryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Manage your reading shelf",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List books on the shelf",
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by reading status (tbr, reading, completed, dnf)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.LibraryList,
			},
			{
				Name:  "add",
				Usage: "Add a book to the shelf by Open Library work ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "olid"},
				},
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Initial reading status",
						Value: "tbr",
					},
				},
				Action: r.LibraryAdd,
			},
			{
				Name:  "progress",
				Usage: "Record pages read for a book",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "olid"},
				},
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.IntFlag{
						Name:     "pages",
						Usage:    "Pages read so far",
						Required: true,
					},
				},
				Action: r.LibraryProgress,
			},
			{
				Name:  "status",
				Usage: "Move a book between reading statuses",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "olid"},
				},
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.StringFlag{
						Name:     "to",
						Usage:    "New reading status",
						Required: true,
					},
				},
				Action: r.LibraryStatus,
			},
			{
				Name:  "remove",
				Usage: "Remove a book from the shelf",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "olid"},
				},
				Flags:  []cli.Flag{configFlag(), userFlag()},
				Action: r.LibraryRemove,
			},
		},
	}
}

// playlistCommand runs the book-to-playlist pipeline.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Build Spotify playlists from books",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Generate a playlist for a book by Open Library work ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "olid"},
				},
				Flags: []cli.Flag{
					configFlag(),
					userFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.PlaylistBuild,
			},
		},
	}
}

// topFiveCommand manages the ranked favorites list.
func topFiveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "topfive",
		Usage: "Manage your top five books",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the current top five",
				Flags:  []cli.Flag{configFlag(), userFlag()},
				Action: r.TopFiveShow,
			},
			{
				Name:  "set",
				Usage: "Replace the top five with the given titles",
				Arguments: []cli.Argument{
					&cli.StringArgs{Name: "titles", Min: 1, Max: 5},
				},
				Flags:  []cli.Flag{configFlag(), userFlag()},
				Action: r.TopFiveSet,
			},
		},
	}
}
