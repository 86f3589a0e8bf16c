package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/service"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

func TestDirectory_Lookups(t *testing.T) {
	roster := testRoster()
	roster[types.DepartmentFinance] = append(roster[types.DepartmentFinance], types.Member{ChatID: chatBoss, Nickname: "@boss"})
	d := service.NewDirectory(roster)

	assert.Equal(t, []int64{chatFin, chatFin2, chatBoss}, d.Members(types.DepartmentFinance))
	assert.Equal(t, []types.Department{types.DepartmentHead, types.DepartmentFinance}, d.Roles(chatBoss))
	assert.True(t, d.HasRole(chatPay, types.DepartmentPayment))
	assert.False(t, d.HasRole(chatPay, types.DepartmentHead))

	id, ok := d.ChatIDByNickname(types.DepartmentFinance, "FIN2")
	assert.True(t, ok)
	assert.Equal(t, chatFin2, id)
	_, ok = d.ChatIDByNickname(types.DepartmentFinance, "@nobody")
	assert.False(t, ok)

	assert.True(t, d.Allowed(chatAlice))
	assert.False(t, d.Allowed(777))
	assert.Equal(t, types.Actor{ID: chatBoss, Nickname: "@boss"}, d.Actor(chatBoss))
	assert.Equal(t, "id777", d.Actor(777).Name())
}
