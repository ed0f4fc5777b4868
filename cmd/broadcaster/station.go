package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/catalog"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/db"
	"github.com/kneoio/KneoBroadcaster-sub002/internal/models"
)

var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Manage catalog stations",
}

var stationAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Add a station to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE:  runStationAdd,
}

var stationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog stations",
	RunE:  runStationList,
}

// station add flags
var (
	stationName      string
	stationManagedBy string
	stationBitrate   int
)

func init() {
	rootCmd.AddCommand(stationCmd)
	stationCmd.AddCommand(stationAddCmd)
	stationCmd.AddCommand(stationListCmd)

	stationAddCmd.Flags().StringVar(&stationName, "name", "", "Display name (required)")
	stationAddCmd.Flags().StringVar(&stationManagedBy, "managed-by", string(models.ManagedByItself), "Management mode: ITSELF, MIX or DJ")
	stationAddCmd.Flags().IntVar(&stationBitrate, "bitrate", 0, "Rendition bitrate in bits per second (0 uses the broadcast default)")
	stationAddCmd.MarkFlagRequired("name")
}

func runStationAdd(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	managedBy, err := models.ParseManagedBy(stationManagedBy)
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := commandContext(cmd, 30*time.Second)
	defer cancel()

	station := models.NewStation(args[0], stationName, managedBy, stationBitrate)
	if err := catalog.NewService(db.NewRepositories(database)).CreateStation(ctx, station); err != nil {
		return fmt.Errorf("create station: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Station %s created (id %s)\n", station.Slug, station.ID)
	return nil
}

func runStationList(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := commandContext(cmd, 30*time.Second)
	defer cancel()

	stations, err := catalog.NewService(db.NewRepositories(database)).ListStations(ctx)
	if err != nil {
		return fmt.Errorf("list stations: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tMANAGED BY\tBITRATE\tID")
	for _, st := range stations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", st.Slug, st.Name, st.ManagedBy, st.Bitrate, st.ID)
	}
	return w.Flush()
}
