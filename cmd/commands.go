package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"meetsync/internal/models"
	"meetsync/internal/scheduler"
	"meetsync/internal/store"
)

func requireArg(c *cli.Context, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("%w: missing <%s> argument", models.ErrValidation, name)
	}
	return v, nil
}

func signinCommand() *cli.Command {
	return &cli.Command{
		Name:  "signin",
		Usage: "Register a verified identity, claiming any placeholder invited under the same email.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "Stable identity key from the identity provider.", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "avatar"},
			&cli.StringFlag{Name: "calendar", Usage: "Calendar reference, e.g. google:work or icloud:me@icloud.com."},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.service.SignIn(c.Context, models.Identity{
				Key:         c.String("key"),
				Email:       c.String("email"),
				Name:        c.String("name"),
				AvatarURL:   c.String("avatar"),
				CalendarRef: c.String("calendar"),
			})
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
}

func eventCommand() *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Create, inspect and manage coordination events.",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a draft event.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.IntFlag{Name: "duration", Usage: "Meeting length in minutes."},
					&cli.StringSliceFlag{Name: "participant", Usage: "Participant email (repeatable)."},
					&cli.StringSliceFlag{Name: "slot", Usage: "Candidate slot <start>/<end> in RFC 3339 (repeatable)."},
					&cli.StringFlag{Name: "deadline", Usage: "Response deadline in RFC 3339."},
				},
				Action: func(c *cli.Context) error {
					a, err := openApp(c, appOptions{})
					if err != nil {
						return err
					}
					defer a.Close()

					user, err := a.currentUser(c)
					if err != nil {
						return err
					}

					in := scheduler.CreateEventInput{
						Title:             c.String("title"),
						Description:       c.String("description"),
						DurationMinutes:   c.Int("duration"),
						ParticipantEmails: c.StringSlice("participant"),
					}
					for _, raw := range c.StringSlice("slot") {
						slot, err := parseSlot(raw)
						if err != nil {
							return err
						}
						in.TimeSlots = append(in.TimeSlots, slot)
					}
					if raw := c.String("deadline"); raw != "" {
						deadline, err := parseTime(raw)
						if err != nil {
							return err
						}
						in.Deadline = &deadline
					}

					event, err := a.service.CreateEvent(c.Context, user.ID, in)
					if err != nil {
						return err
					}
					return printJSON(event)
				},
			},
			{
				Name:      "show",
				Usage:     "Show an event with its participants, slots and responses.",
				ArgsUsage: "<event-id>",
				Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
					event, err := a.service.GetEventByID(c.Context, eventID, user.ID)
					if err != nil {
						return err
					}
					return printJSON(event)
				}),
			},
			{
				Name:  "list",
				Usage: "List events you created or were invited to.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status"},
					&cli.IntFlag{Name: "limit", Value: 50},
					&cli.IntFlag{Name: "offset"},
				},
				Action: func(c *cli.Context) error {
					a, err := openApp(c, appOptions{})
					if err != nil {
						return err
					}
					defer a.Close()

					user, err := a.currentUser(c)
					if err != nil {
						return err
					}
					events, err := a.service.ListUserEvents(c.Context, user.ID, store.EventFilter{
						Status: models.EventStatus(c.String("status")),
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return err
					}
					if events == nil {
						events = []*models.EventSummary{}
					}
					return printJSON(events)
				},
			},
			{
				Name:      "publish",
				Usage:     "Open a draft event for responses.",
				ArgsUsage: "<event-id>",
				Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
					event, err := a.service.PublishEvent(c.Context, eventID, user.ID)
					if err != nil {
						return err
					}
					return printJSON(event)
				}),
			},
			{
				Name:      "cancel",
				Usage:     "Cancel an open event.",
				ArgsUsage: "<event-id>",
				Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
					event, err := a.service.CancelEvent(c.Context, eventID, user.ID)
					if err != nil {
						return err
					}
					return printJSON(event)
				}),
			},
			{
				Name:      "decline",
				Usage:     "Decline an invitation.",
				ArgsUsage: "<event-id>",
				Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
					if err := a.service.DeclineEvent(c.Context, eventID, user.ID); err != nil {
						return err
					}
					return printJSON(map[string]string{"event_id": eventID, "status": string(models.ParticipantStatusDeclined)})
				}),
			},
		},
	}
}

// withEvent opens the app, resolves --as and the <event-id> argument.
func withEvent(fn func(c *cli.Context, a *app, user *models.User, eventID string) error) cli.ActionFunc {
	return withEventOptions(appOptions{}, fn)
}

func withEventOptions(opts appOptions, fn func(c *cli.Context, a *app, user *models.User, eventID string) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		eventID, err := requireArg(c, "event-id")
		if err != nil {
			return err
		}
		a, err := openApp(c, opts)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.currentUser(c)
		if err != nil {
			return err
		}
		return fn(c, a, user, eventID)
	}
}

func respondCommand() *cli.Command {
	return &cli.Command{
		Name:      "respond",
		Usage:     "Replace your availability for an event.",
		ArgsUsage: "<event-id>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "response", Usage: "<slot-id>=<available|maybe|unavailable> (repeatable)."},
		},
		Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
			var responses []scheduler.ResponseInput
			for _, raw := range c.StringSlice("response") {
				r, err := parseResponse(raw)
				if err != nil {
					return err
				}
				responses = append(responses, r)
			}
			if err := a.service.SubmitAvailabilityResponses(c.Context, user.ID, eventID, responses); err != nil {
				return err
			}
			event, err := a.service.GetEventByID(c.Context, eventID, user.ID)
			if err != nil {
				return err
			}
			return printJSON(event)
		}),
	}
}

func rankCommand() *cli.Command {
	return &cli.Command{
		Name:      "rank",
		Usage:     "Rank an event's slots by aggregate availability.",
		ArgsUsage: "<event-id>",
		Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
			if _, err := a.service.GetEventByID(c.Context, eventID, user.ID); err != nil {
				return err
			}
			ranked, err := a.service.FindOptimalTimeSlots(c.Context, eventID)
			if err != nil {
				return err
			}
			return printJSON(ranked)
		}),
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show response rate and the most popular slot.",
		ArgsUsage: "<event-id>",
		Action: withEvent(func(c *cli.Context, a *app, user *models.User, eventID string) error {
			if _, err := a.service.GetEventByID(c.Context, eventID, user.ID); err != nil {
				return err
			}
			summary, err := a.reporter.GetEventStatistics(c.Context, eventID)
			if err != nil {
				return err
			}
			return printJSON(summary)
		}),
	}
}

func confirmCommand() *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "Confirm a slot and send calendar invites.",
		ArgsUsage: "<event-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "slot", Required: true},
			&cli.StringFlag{Name: "location"},
			&cli.BoolFlag{Name: "no-invites", Usage: "Confirm without creating a calendar event."},
		},
		Action: withEventOptions(appOptions{calendars: true}, func(c *cli.Context, a *app, user *models.User, eventID string) error {
			res, err := a.service.ConfirmEvent(c.Context, eventID, c.String("slot"), user.ID, scheduler.ConfirmOptions{
				Location:            c.String("location"),
				SkipCalendarInvites: c.Bool("no-invites"),
			})
			if err != nil {
				return err
			}
			if res.Degraded() {
				a.logger.Warn("Event confirmed, but the calendar event could not be created. Run 'meetsync sync' to retry.", "event_id", eventID)
			}
			return printJSON(res)
		}),
	}
}

func conflictsCommand() *cli.Command {
	return &cli.Command{
		Name:  "conflicts",
		Usage: "Check calendars for conflicts with an event slot or an arbitrary interval.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "event"},
			&cli.StringFlag{Name: "slot"},
			&cli.StringSliceFlag{Name: "user", Usage: "User email to check (repeatable)."},
			&cli.StringFlag{Name: "start", Usage: "RFC 3339 start of the interval."},
			&cli.StringFlag{Name: "end", Usage: "RFC 3339 end of the interval."},
		},
		Action: func(c *cli.Context) error {
			a, err := openApp(c, appOptions{calendars: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if eventID := c.String("event"); eventID != "" {
				user, err := a.currentUser(c)
				if err != nil {
					return err
				}
				results, err := a.checker.CheckSlotConflicts(c.Context, eventID, c.String("slot"), user.ID)
				if err != nil {
					return err
				}
				return printJSON(results)
			}

			start, err := parseTime(c.String("start"))
			if err != nil {
				return err
			}
			end, err := parseTime(c.String("end"))
			if err != nil {
				return err
			}
			var userIDs []string
			for _, email := range c.StringSlice("user") {
				u, err := a.service.UserByEmail(c.Context, email)
				if err != nil {
					return err
				}
				userIDs = append(userIDs, u.ID)
			}

			results, err := a.checker.CheckSchedulingConflicts(c.Context, userIDs, start, end)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}
