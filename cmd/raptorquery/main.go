// Command raptorquery loads a v3 timetable image and answers a single
// routing query from the command line. Grounded on
// _examples/tidbyt-gtfs/cmd/main.go's rootCmd/PersistentFlags/Execute
// shape, adapted to a single-command CLI over this package's own
// timetable/router stack instead of tidbyt's SQLite-backed GTFS
// manager (see DESIGN.md).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nrrrt/raptor/realtime"
	"github.com/nrrrt/raptor/router"
	"github.com/nrrrt/raptor/spatial"
	"github.com/nrrrt/raptor/stringindex"
	"github.com/nrrrt/raptor/timetable"
	"github.com/nrrrt/raptor/timetable/tdload"
)

var rootCmd = &cobra.Command{
	Use:          "raptorquery",
	Short:        "RAPTOR transit routing query tool",
	Long:         "Loads a v3 timetable image and answers a single from/to routing query",
	SilenceUsage: true,
}

var (
	timetablePath string
	realtimePath  string
	fromStopID    string
	toStopID      string
	depart        string
	arriveBy      bool
	maxTransfers  int
	verbose       bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&timetablePath, "timetable", "", "path to a v3 timetable image")
	rootCmd.PersistentFlags().StringVar(&realtimePath, "realtime", "", "path to a GTFS-realtime FeedMessage (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(routeCmd)
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Find the Pareto-optimal itineraries between two stops",
	RunE:  runRoute,
}

func init() {
	routeCmd.Flags().StringVar(&fromStopID, "from", "", "origin stop_id")
	routeCmd.Flags().StringVar(&toStopID, "to", "", "destination stop_id")
	routeCmd.Flags().StringVar(&depart, "time", "", "query time, RFC3339 (default: now)")
	routeCmd.Flags().BoolVar(&arriveBy, "arrive-by", false, "treat --time as a desired arrival time")
	routeCmd.Flags().IntVar(&maxTransfers, "max-transfers", 4, "maximum number of transfers")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadTimetable() (*timetable.Timetable, error) {
	if timetablePath == "" {
		return nil, fmt.Errorf("--timetable is required")
	}
	buf, err := os.ReadFile(timetablePath)
	if err != nil {
		return nil, fmt.Errorf("reading timetable: %w", err)
	}
	tt, err := tdload.Load(buf)
	if err != nil {
		return nil, fmt.Errorf("loading timetable: %w", err)
	}
	return tt, nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	tt, err := loadTimetable()
	if err != nil {
		return err
	}

	stopIndex := stringindex.BuildFromSlice(tt.StopIDs)

	if realtimePath != "" {
		raw, err := os.ReadFile(realtimePath)
		if err != nil {
			return fmt.Errorf("reading realtime feed: %w", err)
		}
		updates, err := realtime.DecodeFeed(raw)
		if err != nil {
			return fmt.Errorf("decoding realtime feed: %w", err)
		}
		tripIndex := stringindex.BuildFromSlice(tt.RouteIDs)
		overlay := realtime.NewOverlay(tt, tripIndex, stopIndex)
		overlay.Apply(updates)
		tt.SetOverlay(overlay)
		log.Info().Int("dropped", overlay.Drops()).Msg("applied realtime feed")
	}

	from, ok := stopIndex.Get(fromStopID)
	if !ok {
		return fmt.Errorf("unknown from stop_id %q", fromStopID)
	}
	to, ok := stopIndex.Get(toStopID)
	if !ok {
		return fmt.Errorf("unknown to stop_id %q", toStopID)
	}

	queryTime := time.Now()
	if depart != "" {
		queryTime, err = time.Parse(time.RFC3339, depart)
		if err != nil {
			return fmt.Errorf("parsing --time: %w", err)
		}
	}

	grid := spatial.New()
	for i, s := range tt.Stops {
		if i == len(tt.Stops)-1 {
			continue // sentinel
		}
		grid.Insert(uint32(i), s.Lat, s.Lon)
	}

	rt := router.New(tt, router.WithSpatialIndex(grid))

	req := &router.Request{
		From:         from,
		To:           to,
		Time:         rtimeOfQuery(queryTime),
		ArriveBy:     arriveBy,
		NowEpoch:     uint64(queryTime.Unix()),
		WalkSpeed:    1.3,
		WalkSlack:    60,
		MaxTransfers: maxTransfers,
		DayMask:      1 << dayIndex(tt, queryTime),
		Via:          timetable.None,
		TimeCutoff:   timetable.Unreached,
		OnboardVJ:    timetable.None,
	}

	res, err := rt.Route(req)
	if err != nil {
		return err
	}

	for _, it := range res.Itineraries {
		fmt.Printf("%d round(s):\n", it.Rounds)
		for _, leg := range it.Legs {
			if leg.IsWalk {
				fmt.Printf("  walk  %s -> %s  arrive %d\n", stopLabel(tt, leg.FromStop), stopLabel(tt, leg.ToStop), leg.ArriveTime)
			} else {
				fmt.Printf("  ride  %s -> %s  depart %d arrive %d (jp %d)\n", stopLabel(tt, leg.FromStop), stopLabel(tt, leg.ToStop), leg.DepartTime, leg.ArriveTime, leg.JP)
			}
		}
	}
	if len(res.Itineraries) == 0 {
		fmt.Println("no itinerary found")
	}
	return nil
}

func stopLabel(tt *timetable.Timetable, stop uint32) string {
	if int(stop) < len(tt.StopIDs) && tt.StopIDs[stop] != "" {
		return tt.StopIDs[stop]
	}
	return fmt.Sprintf("stop#%d", stop)
}

// rtimeOfQuery converts a wall-clock time to an rtime in the router's
// three-day frame: the time of day in 4-second units plus OneDay, so
// the query falls in the "today" ServiceDay.
func rtimeOfQuery(t time.Time) timetable.RTime {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return timetable.RTime(sec/4) + timetable.OneDay
}

func dayIndex(tt *timetable.Timetable, t time.Time) uint32 {
	epoch := uint64(t.Unix())
	if epoch < tt.CalendarStartTime {
		return 0
	}
	d := (epoch - tt.CalendarStartTime) / 86400
	if d >= 32 {
		return 31
	}
	return uint32(d)
}
