package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		from       Status
		transition func(Status) (Status, error)
		want       Status
		wantErr    bool
	}{
		{name: "confirm from CREATED", from: StatusCreated, transition: Status.Confirm, want: StatusConfirmed},
		{name: "confirm from CONFIRMED rejected", from: StatusConfirmed, transition: Status.Confirm, wantErr: true},
		{name: "confirm from PROCESSING rejected", from: StatusProcessing, transition: Status.Confirm, wantErr: true},
		{name: "confirm from SHIPPED rejected", from: StatusShipped, transition: Status.Confirm, wantErr: true},
		{name: "confirm from DELIVERED rejected", from: StatusDelivered, transition: Status.Confirm, wantErr: true},
		{name: "confirm from CANCELLED rejected", from: StatusCancelled, transition: Status.Confirm, wantErr: true},

		{name: "ship from CONFIRMED", from: StatusConfirmed, transition: Status.Ship, want: StatusShipped},
		{name: "ship from CREATED rejected", from: StatusCreated, transition: Status.Ship, wantErr: true},
		{name: "ship from SHIPPED rejected", from: StatusShipped, transition: Status.Ship, wantErr: true},
		{name: "ship from DELIVERED rejected", from: StatusDelivered, transition: Status.Ship, wantErr: true},
		{name: "ship from CANCELLED rejected", from: StatusCancelled, transition: Status.Ship, wantErr: true},

		{name: "deliver from SHIPPED", from: StatusShipped, transition: Status.Deliver, want: StatusDelivered},
		{name: "deliver from CREATED rejected", from: StatusCreated, transition: Status.Deliver, wantErr: true},
		{name: "deliver from CONFIRMED rejected", from: StatusConfirmed, transition: Status.Deliver, wantErr: true},
		{name: "deliver from CANCELLED rejected", from: StatusCancelled, transition: Status.Deliver, wantErr: true},

		{name: "cancel from CREATED", from: StatusCreated, transition: Status.Cancel, want: StatusCancelled},
		{name: "cancel from CONFIRMED", from: StatusConfirmed, transition: Status.Cancel, want: StatusCancelled},
		{name: "cancel from PROCESSING", from: StatusProcessing, transition: Status.Cancel, want: StatusCancelled},
		{name: "cancel from SHIPPED", from: StatusShipped, transition: Status.Cancel, want: StatusCancelled},
		{name: "cancel from DELIVERED rejected", from: StatusDelivered, transition: Status.Cancel, wantErr: true},
		{name: "cancel from CANCELLED rejected", from: StatusCancelled, transition: Status.Cancel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.transition(tt.from)

			if tt.wantErr {
				require.Error(t, err)

				var transitionErr *InvalidTransitionError
				require.True(t, errors.As(err, &transitionErr), "expected *InvalidTransitionError, got %T", err)
				require.Equal(t, tt.from, transitionErr.From)
				require.NotEmpty(t, transitionErr.Required)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusCreated:    false,
		StatusConfirmed:  false,
		StatusProcessing: false,
		StatusShipped:    false,
		StatusDelivered:  true,
		StatusCancelled:  true,
	}

	for status, want := range terminal {
		require.Equal(t, want, status.IsTerminal(), "IsTerminal(%s)", status)
	}
}

func TestParseStatus(t *testing.T) {
	for status := range validStatuses {
		got, err := ParseStatus(string(status))
		require.NoError(t, err)
		require.Equal(t, status, got)
	}

	// Регистр значим: в БД и событиях статусы всегда в верхнем регистре
	_, err := ParseStatus("created")
	require.Error(t, err)

	_, err = ParseStatus("UNKNOWN")
	require.Error(t, err)
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{
		Action:   "ship",
		From:     StatusCreated,
		Required: []Status{StatusConfirmed},
	}
	require.Equal(t, "cannot ship order: status is CREATED, requires CONFIRMED", err.Error())

	cancelErr := &InvalidTransitionError{
		Action:   "cancel",
		From:     StatusDelivered,
		Required: []Status{StatusCreated, StatusConfirmed, StatusProcessing, StatusShipped},
	}
	require.Contains(t, cancelErr.Error(), "CREATED or CONFIRMED or PROCESSING or SHIPPED")
}
