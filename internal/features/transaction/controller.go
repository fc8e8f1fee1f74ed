package transaction

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

type TransactionController struct {
	Repo TransactionRepository
}

func NewTransactionController(repo TransactionRepository) *TransactionController {
	return &TransactionController{
		Repo: repo,
	}
}

func parseWindowParams(c *fiber.Ctx) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)

	if v := c.Query("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, fmt.Errorf("invalid start_date: %v", err)
		}
		start = t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, fmt.Errorf("invalid end_date: %v", err)
		}
		end = t
	}
	return start, end, nil
}

// ListTransactions godoc
func (ctrl *TransactionController) ListTransactions(c *fiber.Ctx) error {
	restaurantID := c.Params("restaurantId")

	start, end, err := parseWindowParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	txns, err := ctrl.Repo.ListByWindow(c.Context(), restaurantID, start, end, int64(c.QueryInt("limit", 1000)))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data":  txns,
		"count": len(txns),
	})
}

// ExportTransactions godoc
func (ctrl *TransactionController) ExportTransactions(c *fiber.Ctx) error {
	restaurantID := c.Params("restaurantId")

	start, end, err := parseWindowParams(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	txns, err := ctrl.Repo.ListByWindow(c.Context(), restaurantID, start, end, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Transactions"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"External ID", "Closed At (UTC)", "Hour", "Day", "Total", "Tip", "Currency", "Items", "Payment Type"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, txn := range txns {
		values := []interface{}{
			txn.ExternalID,
			txn.ClosedAt.Format(time.RFC3339),
			txn.HourOfDay,
			txn.DayOfWeek,
			txn.TotalAmount,
			txn.TipAmount,
			txn.Currency,
			txn.ItemCount,
			txn.PaymentType,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	filename := fmt.Sprintf("transactions_%s_%s.xlsx", restaurantID, time.Now().UTC().Format("20060102"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
