package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lapublica/pipeline-api/pkg/jwt"
)

// newTokenCmd firma un token con JWT_SECRET para probar la API en local.
// En producción los tokens los emite el servicio de identidad.
func newTokenCmd(c *cli) *cobra.Command {
	var id jwt.Identity
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un token de desarrollo firmado con JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// La API guarda usuario y empresa en columnas UUID.
			for flag, v := range map[string]string{"--user": id.UserID, "--company": id.CompanyID} {
				if _, err := uuid.Parse(v); err != nil {
					return fmt.Errorf("%s debe ser un UUID: %q", flag, v)
				}
			}
			auth, err := jwt.New(c.jwt.Secret, c.jwt.Issuer, c.jwt.TTL())
			if err != nil {
				return fmt.Errorf("%w: define JWT_SECRET", err)
			}
			tok, err := auth.Sign(id)
			if err != nil {
				return err
			}
			c.log.Debug().Str("user", id.UserID).Str("role", id.Role).Dur("ttl", c.jwt.TTL()).Msg("token emitido")
			_, err = fmt.Fprintln(c.out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&id.UserID, "user", "", "id del usuario (sub)")
	cmd.Flags().StringVar(&id.CompanyID, "company", "", "id de la empresa")
	cmd.Flags().StringVar(&id.Role, "role", jwt.RoleMember, "admin, member o viewer")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
