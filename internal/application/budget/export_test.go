package budget

import "time"

// Relojes fijos para las pruebas del paquete budget_test.

func (uc *UseCase) SetClock(now func() time.Time)         { uc.now = now }
func (uc *SnapshotUseCase) SetClock(now func() time.Time) { uc.now = now }
func (uc *ReportUseCase) SetClock(now func() time.Time)   { uc.now = now }
