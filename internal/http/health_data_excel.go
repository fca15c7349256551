package httpapi

import (
	"fmt"
	"time"

	"healthmon/internal/domain"

	"github.com/xuri/excelize/v2"
)

// HealthDataExportHeader 导出表头
var HealthDataExportHeader = []string{
	"Measured At",
	"Device ID",
	"Heart Rate",
	"Body Temperature",
	"Age",
	"Weight (kg)",
	"Height (m)",
	"Gender",
	"BMI",
	"Predicted Risk",
	"Alert",
}

const healthDataSheetName = "Health Data"

// GenerateHealthDataExport 生成测量历史导出 Excel 文件
// records: 记录列表，为空则只生成表头
func GenerateHealthDataExport(records []*domain.HealthRecord) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	index, err := f.NewSheet(healthDataSheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for col, header := range HealthDataExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(healthDataSheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, record := range records {
		row := i + 2
		values := []any{
			record.MeasuredAt.Format(time.RFC3339),
			record.DeviceID,
			record.HeartRate,
			record.BodyTemperature,
			record.Age,
			record.WeightKg,
			record.HeightM,
			record.Gender,
			record.BMICalculated,
			record.PredictedRisk,
			record.Alert,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(healthDataSheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}

	return buf.Bytes(), nil
}
