package main

import (
	"context"

	"github.com/trezcool/shule/core/school"
)

func (cli *commandLine) addClass(name, year, schedule string) error {
	nc := school.NewClass{
		Name:         name,
		AcademicYear: year,
		Schedule:     schedule,
	}
	if err := nc.Validate(cli.validate); err != nil {
		return err
	}
	_, err := cli.schoolSvc.Create(context.Background(), nc)
	return err
}
