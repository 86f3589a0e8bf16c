package templates

import "github.com/BrandonDHaskell/budgetbot/internal/budget/types"

var defaultSources = map[types.Department]map[Stage]string{
	types.DepartmentInitiator: {
		StageInitiatorToHead: "You added a new invoice #{{.row_id}}.\n" +
			"It has been sent to the department head for approval.\n{{.record_data_text}}",
		StageHeadToFinance: "Invoice #{{.row_id}} was approved by the department head {{.approver}} " +
			"and sent to the finance department for approval.\n{{.record_data_text}}",
		StageHeadToPayment: "Invoice #{{.row_id}} was approved by the department head: {{.approver}} " +
			"and sent for payment.\n{{.record_data_text}}",
		StageHeadFinanceToPayment: "Invoice #{{.row_id}} was approved by the department head and the finance " +
			"department: {{.approver}} and sent for payment.\n{{.record_data_text}}",
		StagePaid:     "Invoice #{{.row_id}} was paid by {{.approver}}.\n{{.record_data_text}}",
		StageRejected: "Invoice #{{.row_id}} was rejected by {{.approver}}.\n{{.record_data_text}}",
	},
	types.DepartmentHead: {
		StageFromInitiator: "New invoice #{{.row_id}} from {{.initiator_nickname}}.\n" +
			"Please review it.\n{{.record_data_text}}",
		StageHeadToFinance: "You approved invoice #{{.row_id}}.\n" +
			"It has been sent to the finance department for approval.\n{{.record_data_text}}",
		StageHeadToPayment: "You approved invoice #{{.row_id}}.\nIt has been sent for payment.\n{{.record_data_text}}",
		StageHeadFinanceToPayment: "Invoice #{{.row_id}} was approved by you and the finance department: {{.approver}}.\n" +
			"It has been sent for payment.\n{{.record_data_text}}",
		StagePaid:     "Invoice #{{.row_id}} was paid by {{.approver}}.\n{{.record_data_text}}",
		StageRejected: "Invoice #{{.row_id}} was rejected by {{.approver}}.\n{{.record_data_text}}",
	},
	types.DepartmentFinance: {
		StageFromHead: "New invoice #{{.row_id}} from {{.initiator_nickname}}.\n" +
			"Approved by the department head: {{.approver}}.\nPlease review it.\n{{.record_data_text}}",
		StageToPayment: "Invoice #{{.row_id}} was approved by you and the department head: {{.approver}}.\n" +
			"It has been sent for payment.\n{{.record_data_text}}",
		StagePaid:     "Invoice #{{.row_id}} was paid by {{.approver}}.\n{{.record_data_text}}",
		StageRejected: "Invoice #{{.row_id}} was rejected by {{.approver}}.\n{{.record_data_text}}",
	},
	types.DepartmentPayment: {
		StageHeadToPayment: "New invoice #{{.row_id}} from {{.initiator_nickname}}.\n" +
			"Approved by the department head: {{.approver}} and ready for payment.\n" +
			"Please pay it.\n{{.record_data_text}}",
		StageFinanceToPayment: "New invoice #{{.row_id}} from {{.initiator_nickname}}.\n" +
			"Approved by the department head and the finance department: {{.approver}}, and ready for payment.\n" +
			"Please pay it.\n{{.record_data_text}}",
		StagePaid:     "Invoice #{{.row_id}} was paid by {{.approver}}.\n{{.record_data_text}}",
		StageRejected: "Invoice #{{.row_id}} was rejected by {{.approver}}.\n{{.record_data_text}}",
	},
}
