package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"covnorm/internal/domain"
)

type coberturaCoverage struct {
	XMLName      xml.Name           `xml:"coverage"`
	LineRate     float64            `xml:"line-rate,attr"`
	LinesValid   int                `xml:"lines-valid,attr"`
	LinesCovered int                `xml:"lines-covered,attr"`
	Packages     []coberturaPackage `xml:"packages>package"`
}

type coberturaPackage struct {
	Name    string           `xml:"name,attr"`
	Classes []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name     string  `xml:"name,attr"`
	Filename string  `xml:"filename,attr"`
	LineRate float64 `xml:"line-rate,attr"`
}

// CoberturaParser reads the summary of a Cobertura XML report
type CoberturaParser struct{}

// NewCoberturaParser creates a new CoberturaParser
func NewCoberturaParser() *CoberturaParser {
	return &CoberturaParser{}
}

// Summarize returns the headline numbers of the report
func (p *CoberturaParser) Summarize(data []byte) (*domain.ReportSummary, error) {
	var cov coberturaCoverage
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&cov); err != nil {
		return nil, fmt.Errorf("parse cobertura report: %w", err)
	}

	summary := &domain.ReportSummary{
		LineRate:     cov.LineRate,
		LinesValid:   cov.LinesValid,
		LinesCovered: cov.LinesCovered,
	}
	for _, pkg := range cov.Packages {
		summary.Classes += len(pkg.Classes)
	}
	return summary, nil
}

// Filenames returns every class filename recorded in the report, in order
func (p *CoberturaParser) Filenames(data []byte) ([]string, error) {
	var cov coberturaCoverage
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&cov); err != nil {
		return nil, fmt.Errorf("parse cobertura report: %w", err)
	}

	var files []string
	for _, pkg := range cov.Packages {
		for _, c := range pkg.Classes {
			files = append(files, c.Filename)
		}
	}
	return files, nil
}
