package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/sahachari/internal/recipe"
	"codeberg.org/snonux/sahachari/internal/vision"
)

func newRecognizeCommand(r *runner) *cobra.Command {
	var (
		caption     string
		withRecipes bool
	)
	cmd := &cobra.Command{
		Use:   "recognize <image path or URL>",
		Short: "Recognise the ingredients in a food photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.svc.Vision()
			if err != nil {
				return err
			}
			data, filename, err := vision.LoadImage(cmd.Context(), nil, args[0], r.svc.Config().MaxImageBytes())
			if err != nil {
				return err
			}

			res := svc.Recognize(cmd.Context(), vision.Request{Image: data, Filename: filename, Caption: caption})
			if err := render(r, cmd, res, printIngredients); err != nil {
				return err
			}
			if !withRecipes || len(res.Payload) == 0 {
				return nil
			}

			recipes, err := r.svc.Recipes()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(res.Payload))
			for _, in := range res.Payload {
				names = append(names, in.Name)
			}
			if !r.flags.JSON {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return render(r, cmd, recipes.Generate(cmd.Context(), recipe.Request{Ingredients: names}), printGenerated)
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "Describe the photo to help offline recognition")
	cmd.Flags().BoolVar(&withRecipes, "recipes", false, "Suggest recipes for the recognised ingredients")
	return cmd
}

func printIngredients(w io.Writer, items []vision.Ingredient) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No food items recognised")
		return
	}
	for _, in := range items {
		line := fmt.Sprintf("%-16s %3.0f%%  %s", in.Name, in.Confidence*100, in.Source)
		if info, ok := vision.Nutrition(in.Name); ok {
			line += fmt.Sprintf("  (%d kcal/100g)", info.Calories)
		}
		fmt.Fprintln(w, line)
	}
}
