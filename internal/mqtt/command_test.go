package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/vending-controller/internal/hsm"
	"github.com/sweeney/vending-controller/internal/vending"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want hsm.Event
	}{
		{`{"event":"power_on"}`, vending.PowerOn{}},
		{`{"event":"power_off"}`, vending.PowerOff{}},
		{`{"event":"start_maintenance","code":2147483647}`, vending.StartMaintenance{Code: vending.FactoryCode}},
		{`{"event":"end_maintenance"}`, vending.EndMaintenance{}},
		{`{"event":"load_goods","slot":0,"qty":10}`, vending.LoadGoods{Slot: 0, Qty: 10}},
		{`{"event":"load_goods","slot":2,"qty":-1}`, vending.LoadGoods{Slot: 2, Qty: -1}},
		{`{"event":"set_price","slot":1,"price":5.5}`, vending.SetPrice{Slot: 1, Price: 5.5}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ev, err := DecodeCommand([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"unknown", `{"event":"dispense"}`, ErrUnknownCommand},
		{"empty", `{}`, ErrUnknownCommand},
		{"no code", `{"event":"start_maintenance"}`, ErrMissingField},
		{"no qty", `{"event":"load_goods","slot":1}`, ErrMissingField},
		{"no slot", `{"event":"set_price","price":1}`, ErrMissingField},
		{"no price", `{"event":"set_price","slot":1}`, ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tt.in))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := DecodeCommand([]byte(`{"event":`))
	assert.Error(t, err)
	_, err = DecodeCommand([]byte(`{"event":"load_goods","slot":"a","qty":1}`))
	assert.Error(t, err)
}

func TestEncodeCommand(t *testing.T) {
	data, err := EncodeCommand(vending.LoadGoods{Slot: 0, Qty: 10})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"load_goods","slot":0,"qty":10}`, string(data))

	data, err = EncodeCommand(vending.PowerOn{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"power_on"}`, string(data))

	for _, ev := range []hsm.Event{
		vending.StartMaintenance{Code: 7},
		vending.SetPrice{Slot: 3, Price: 1.25},
		vending.EndMaintenance{},
	} {
		data, err := EncodeCommand(ev)
		require.NoError(t, err)
		back, err := DecodeCommand(data)
		require.NoError(t, err)
		assert.Equal(t, ev, back)
	}
}
