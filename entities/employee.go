package entities

import "bitbucket.org/mmdatafocus/erp_importer/models"

var Employee = register(&models.EntityDescriptor{
	Name:     "employee",
	ERPModel: "hr.employee",

	NaturalKeyField: "name",
	NaturalKeyERP:   "name",

	Mode: models.UpsertModeSingle,

	HeaderFields: []models.FieldSpec{
		{Name: "name", Aliases: []string{"employee name", "full name"}, ERPField: "name", Type: models.FieldString, Required: true, MaxLen: 128},
		{Name: "job_title", Aliases: []string{"position", "title"}, ERPField: "job_title", Type: models.FieldString, MaxLen: 128},
		{Name: "work_email", Aliases: []string{"email"}, ERPField: "work_email", Type: models.FieldString, MaxLen: 128},
		{Name: "work_phone", Aliases: []string{"phone", "tel"}, ERPField: "work_phone", Type: models.FieldPhone, MaxLen: 32},
		{Name: "mobile_phone", Aliases: []string{"mobile"}, ERPField: "mobile_phone", Type: models.FieldPhone, MaxLen: 32},
		{Name: "identification_id", Aliases: []string{"id number", "national id"}, ERPField: "identification_id", Type: models.FieldString, MaxLen: 32},
		{Name: "active", ERPField: "active", Type: models.FieldBool, BoolDefault: true, Default: true, OmitOnUpdate: true},
	},
})
