package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ticket-trader/internal/database"
	"ticket-trader/internal/models"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var (
	dbURL  = flag.String("db", "", "database connection string (overrides DATABASE_URL)")
	output = flag.String("out", "", "output file (default purchase-report-YYYY-MM-DD.xlsx)")
	days   = flag.Int("days", 30, "how many days of attempts to include")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	db, err := database.Initialize(dsn)
	if err != nil {
		log.Fatalf("[report] database init failed: %v", err)
	}

	out := *output
	if out == "" {
		out = fmt.Sprintf("purchase-report-%s.xlsx", time.Now().Format("2006-01-02"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeCalibrationSheet(f, db); err != nil {
		log.Fatalf("[report] calibration sheet failed: %v", err)
	}
	if err := writeAttemptsSheet(f, db, *days); err != nil {
		log.Fatalf("[report] attempts sheet failed: %v", err)
	}
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(out); err != nil {
		log.Fatalf("[report] save failed: %v", err)
	}
	log.Printf("[report] wrote %s", out)
}

func writeCalibrationSheet(f *excelize.File, db *gorm.DB) error {
	const sheet = "Platform Calibration"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Platform", "Attempts", "Successes", "Success Rate %", "Avg Latency (ms)", "Price Variance", "Last Updated"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	var rows []models.PlatformCalibration
	if err := db.Order("platform ASC").Find(&rows).Error; err != nil {
		return err
	}
	for r, row := range rows {
		values := []interface{}{
			row.Platform,
			row.Attempts,
			row.Successes,
			row.SuccessRate,
			row.AvgLatencyMs,
			row.PriceVariance,
			row.LastUpdated.Format("2006-01-02 15:04:05"),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	log.Printf("[report] %d calibration row(s)", len(rows))
	return nil
}

func writeAttemptsSheet(f *excelize.File, db *gorm.DB, days int) error {
	const sheet = "Purchase Attempts"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Intent", "Listing", "Platform", "Attempt #", "Outcome", "Reason", "Estimated", "Final", "Fees", "Confirmation", "Started", "Latency (ms)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	since := time.Now().AddDate(0, 0, -days)
	var attempts []models.PurchaseAttempt
	if err := db.Where("started_at >= ?", since).Order("started_at DESC").Find(&attempts).Error; err != nil {
		return err
	}
	for r, a := range attempts {
		values := []interface{}{
			a.IntentID,
			a.ListingID,
			a.Platform,
			a.AttemptNumber,
			a.Outcome,
			a.Reason,
			a.EstimatedPrice,
			a.FinalPrice,
			a.Fees,
			a.Confirmation,
			a.StartedAt.Format("2006-01-02 15:04:05"),
			a.Latency().Milliseconds(),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	log.Printf("[report] %d attempt(s) since %s", len(attempts), since.Format("2006-01-02"))
	return nil
}
